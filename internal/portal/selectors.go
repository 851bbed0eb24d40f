// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package portal

import "github.com/pdiddy/judgment-engine/internal/browser"

// Selectors locates the portal's UI elements. The defaults match the
// eCourts judgment search portal; override fields when its markup changes.
type Selectors struct {
	// Verification gate.
	ChallengeImage   browser.Locator
	ChallengeInput   browser.Locator
	ChallengeRefresh browser.Locator
	ErrorIndicator   browser.Locator
	DialogClose      browser.Locator

	// AdvancedSearch is the link that submits the challenge answer and
	// opens the advanced search form.
	AdvancedSearch browser.Locator

	// AdvancedReady is visible once the advanced search form is usable.
	AdvancedReady browser.Locator

	// Advanced search form fields.
	Court    browser.Locator
	Bench    browser.Locator
	CaseType browser.Locator
	Disposal browser.Locator
	FromDate browser.Locator
	ToDate   browser.Locator
	Submit   browser.Locator

	// Results is the results table body.
	Results browser.Locator
}

// DefaultSelectors returns the locators for the live portal.
func DefaultSelectors() Selectors {
	return Selectors{
		ChallengeImage:   browser.ID("captcha_image"),
		ChallengeInput:   browser.ID("captcha"),
		ChallengeRefresh: browser.XPath("/html/body/div[2]/main/form/div[3]/div[1]/a/img"),
		ErrorIndicator:   browser.ID("errorIcon"),
		DialogClose:      browser.Class("btn-close"),
		AdvancedSearch:   browser.LinkText("Advanced Search"),
		AdvancedReady:    browser.ID("adv_court_name"),
		Court:            browser.ID("adv_court_name"),
		Bench:            browser.ID("adv_bench_name"),
		CaseType:         browser.ID("adv_case_type"),
		Disposal:         browser.ID("adv_disp_nature"),
		FromDate:         browser.ID("adv_from_date"),
		ToDate:           browser.ID("adv_to_date"),
		Submit:           browser.ID("adv_search_btn"),
		Results:          browser.ID("report_body"),
	}
}

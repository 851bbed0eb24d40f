// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/judgment-engine/internal/httputil"
	"github.com/pdiddy/judgment-engine/internal/ocr"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

const dense = "IN THE HIGH COURT OF JUDICATURE AT BOMBAY, CRIMINAL APPELLATE JURISDICTION"

// fakeTexter returns scripted page texts.
type fakeTexter struct {
	pages []string
	err   error
}

func (f fakeTexter) PageTexts([]byte) ([]string, error) { return f.pages, f.err }

// fakeRasterizer records the pages it was asked to render.
type fakeRasterizer struct {
	pages []int
	err   error
}

func (f *fakeRasterizer) RasterizePage(_ context.Context, _ []byte, page int) ([]byte, error) {
	f.pages = append(f.pages, page)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(fmt.Sprintf("png-%d", page)), nil
}

// fakeRecognizer turns "png-N" into "scanned page N".
type fakeRecognizer struct {
	calls int
	modes []ocr.Mode
	err   error
}

func (f *fakeRecognizer) Recognize(_ context.Context, img []byte, mode ocr.Mode) (string, error) {
	f.calls++
	f.modes = append(f.modes, mode)
	if f.err != nil {
		return "", f.err
	}
	return "scanned page " + strings.TrimPrefix(string(img), "png-") + "\n", nil
}

func newRetriever(texter PageTexter, raster *fakeRasterizer, rec *fakeRecognizer) *Retriever {
	return New(nil, types.RetrievalConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
	}, texter, raster, rec, nil)
}

func TestConvert_DenseNeverUsesOCR(t *testing.T) {
	raster, rec := &fakeRasterizer{}, &fakeRecognizer{}
	r := newRetriever(fakeTexter{pages: []string{dense, dense + " page two", dense}}, raster, rec)

	doc, method, err := r.Convert(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, types.MethodDirect, method)
	assert.Zero(t, rec.calls)
	assert.Empty(t, raster.pages)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, 2, strings.Count(doc.Text, PageSeparator))
	assert.False(t, doc.Optical())
	assert.Empty(t, doc.Warnings())
}

func TestConvert_BlankPagesUseOCR(t *testing.T) {
	raster, rec := &fakeRasterizer{}, &fakeRecognizer{}
	r := newRetriever(fakeTexter{pages: []string{"", "  \n", "\x00\x01"}}, raster, rec)

	doc, method, err := r.Convert(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, types.MethodOptical, method)
	assert.Equal(t, []int{1, 2, 3}, raster.pages)
	assert.Equal(t, []ocr.Mode{ocr.ModeText, ocr.ModeText, ocr.ModeText}, rec.modes)
	for _, p := range doc.Pages {
		assert.True(t, p.Optical, "page %d", p.Number)
	}
	assert.Equal(t, "scanned page 1\fscanned page 2\fscanned page 3", doc.Text)
}

func TestConvert_MixedPages(t *testing.T) {
	raster, rec := &fakeRasterizer{}, &fakeRecognizer{}
	r := newRetriever(fakeTexter{pages: []string{dense, "12", dense}}, raster, rec)

	doc, method, err := r.Convert(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, types.MethodOptical, method)
	assert.Equal(t, []int{2}, raster.pages)
	assert.False(t, doc.Pages[0].Optical)
	assert.True(t, doc.Pages[1].Optical)
	assert.Equal(t, dense+"\fscanned page 2\f"+dense, doc.Text)
}

func TestConvert_ThresholdFollowsConfig(t *testing.T) {
	rec := &fakeRecognizer{}
	r := newRetriever(fakeTexter{pages: []string{"Order dated 1.1.2020"}}, &fakeRasterizer{}, rec)

	r.Config.MinPageChars = 5
	_, method, err := r.Convert(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, types.MethodDirect, method)

	r.Config.MinPageChars = 100
	_, method, err = r.Convert(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, types.MethodOptical, method)
	assert.Equal(t, 1, rec.calls)
}

func TestConvert_MaxPages(t *testing.T) {
	r := newRetriever(fakeTexter{pages: []string{dense, dense, dense}}, &fakeRasterizer{}, &fakeRecognizer{})
	r.Config.MaxPages = 2
	doc, _, err := r.Convert(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Len(t, doc.Pages, 2)
}

func TestConvert_Failures(t *testing.T) {
	t.Run("undecodable document", func(t *testing.T) {
		r := newRetriever(fakeTexter{err: errors.New("malformed xref")}, &fakeRasterizer{}, &fakeRecognizer{})
		doc, method, err := r.Convert(context.Background(), []byte("garbage"))
		assert.ErrorIs(t, err, types.ErrConversionFailed)
		assert.Equal(t, types.MethodFailed, method)
		assert.Empty(t, doc.Text)
	})

	t.Run("ocr fails on a blank document", func(t *testing.T) {
		r := newRetriever(fakeTexter{pages: []string{"", ""}}, &fakeRasterizer{}, &fakeRecognizer{err: errors.New("tesseract: not found")})
		_, method, err := r.Convert(context.Background(), []byte("%PDF"))
		assert.ErrorIs(t, err, types.ErrConversionFailed)
		assert.Equal(t, types.MethodFailed, method)
	})

	t.Run("ocr fails on one sparse page", func(t *testing.T) {
		r := newRetriever(fakeTexter{pages: []string{dense, "p. 2"}}, &fakeRasterizer{err: errors.New("pdftoppm: bad page")}, &fakeRecognizer{})
		doc, method, err := r.Convert(context.Background(), []byte("%PDF"))
		require.NoError(t, err)
		assert.Equal(t, types.MethodOptical, method, "a page needed the optical fallback")
		assert.Equal(t, "p. 2", doc.Pages[1].Text)
		assert.True(t, doc.Pages[1].Fallback)
		assert.False(t, doc.Pages[1].Optical)
		assert.Contains(t, doc.Pages[1].Warning, "bad page")
		assert.Equal(t, "page 2: optical recognition failed: pdftoppm: bad page", doc.Warnings())
	})

	t.Run("ocr fails on an empty page beside a dense one", func(t *testing.T) {
		r := newRetriever(fakeTexter{pages: []string{dense, ""}}, &fakeRasterizer{err: errors.New("pdftoppm: bad page")}, &fakeRecognizer{})
		doc, method, err := r.Convert(context.Background(), []byte("%PDF"))
		require.NoError(t, err)
		assert.Equal(t, types.MethodOptical, method)
		assert.Equal(t, dense+PageSeparator, doc.Text)
		assert.Contains(t, doc.Warnings(), "page 2:")
	})

	t.Run("no ocr configured", func(t *testing.T) {
		r := New(nil, types.RetrievalConfig{}, fakeTexter{pages: []string{""}}, nil, nil, nil)
		_, method, err := r.Convert(context.Background(), []byte("%PDF"))
		assert.ErrorIs(t, err, types.ErrConversionFailed)
		assert.Equal(t, types.MethodFailed, method)
	})
}

func TestRetrieve_Download(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
			w.Write([]byte("%PDF-1.4 body"))
		case "/empty.pdf":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := newRetriever(fakeTexter{pages: []string{dense}}, &fakeRasterizer{}, &fakeRecognizer{})

	doc, method, err := r.Retrieve(context.Background(), srv.URL+"/ok.pdf")
	require.NoError(t, err)
	assert.Equal(t, types.MethodDirect, method)
	assert.Equal(t, []byte("%PDF-1.4 body"), doc.Raw)
	assert.Equal(t, "test/0.1", gotUA)
	assert.Equal(t, "application/pdf", gotAccept)

	for _, path := range []string{"/missing.pdf", "/empty.pdf"} {
		_, method, err = r.Retrieve(context.Background(), srv.URL+path)
		assert.ErrorIs(t, err, types.ErrDownloadFailed, path)
		assert.Equal(t, types.MethodFailed, method)
	}
}

func TestRetrieve_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL + "/gone.pdf"
	srv.Close()

	r := newRetriever(fakeTexter{pages: []string{dense}}, &fakeRasterizer{}, &fakeRecognizer{})
	_, method, err := r.Retrieve(context.Background(), url)
	assert.ErrorIs(t, err, types.ErrDownloadFailed)
	assert.Equal(t, types.MethodFailed, method)
}

func TestRetrieve_BacksOffOnThrottle(t *testing.T) {
	orig := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	defer func() { httputil.RetryBaseDelay = orig }()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	r := newRetriever(fakeTexter{pages: []string{dense}}, &fakeRasterizer{}, &fakeRecognizer{})
	_, method, err := r.Retrieve(context.Background(), srv.URL+"/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, types.MethodDirect, method)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRetrieve_StoreServesRepeats(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("%PDF stored"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := New(nil, types.RetrievalConfig{DocumentsDir: dir}, fakeTexter{pages: []string{dense}}, nil, nil, nil)
	require.NotNil(t, r.Store)

	ref := srv.URL + "/judgments/2020/crl-a-12.pdf"
	for range 2 {
		doc, _, err := r.Retrieve(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF stored"), doc.Raw)
	}
	assert.Equal(t, int32(1), hits.Load())

	data, err := os.ReadFile(r.Store.Path(ref))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF stored"), data)
}

func TestStore_Path(t *testing.T) {
	s := NewStore("docs")
	a := s.Path("https://portal.test/pdfsearch/display_pdf.php?filename=a.pdf")
	b := s.Path("https://portal.test/pdfsearch/display_pdf.php?filename=b.pdf")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "docs/display_pdf.php-"), a)
	assert.True(t, strings.HasSuffix(a, ".pdf"))

	assert.Regexp(t, `^docs/[0-9a-f]{12}\.pdf$`, s.Path("https://portal.test/"))
}

func TestStore_SaveKeepsExisting(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save("https://x.test/a.pdf", []byte("first")))
	require.NoError(t, s.Save("https://x.test/a.pdf", []byte("second")))
	data, ok := s.Load("https://x.test/a.pdf")
	require.True(t, ok)
	assert.Equal(t, []byte("first"), data)

	_, ok = s.Load("https://x.test/other.pdf")
	assert.False(t, ok)
}

func TestDensity(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{" \n\t\f", 0},
		{"...---,,,", 0},
		{"CRL.A 12/2020", 10},
		{"Rs. 10,000/-", 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Density(tt.in), "Density(%q)", tt.in)
	}
}

// buildPDF assembles a minimal single-font PDF with one text line per page.
func buildPDF(lines ...string) []byte {
	var objs []string
	kids := make([]string, len(lines))
	for i := range lines {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(lines)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, line := range lines {
		stream := ""
		if line != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestPDFTexter(t *testing.T) {
	pages, err := PDFTexter{}.PageTexts(buildPDF("Judgment of the Court delivered today", ""))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Judgment of the Court")
	assert.Zero(t, Density(pages[1]))
}

func TestPDFTexter_Garbage(t *testing.T) {
	_, err := PDFTexter{}.PageTexts([]byte("<html>Service Unavailable</html>"))
	assert.Error(t, err)
}

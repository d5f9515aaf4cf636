package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brotliRouter(body string, contentType string) *gin.Engine {
	r := gin.New()
	r.Use(Brotli())
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, contentType, []byte(body))
	})
	return r
}

func serveBrotli(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	r.ServeHTTP(w, req)
	return w
}

func TestBrotli_CompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("SELECT * FROM orders; ", 200)
	w := serveBrotli(brotliRouter(body, "text/plain"))

	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))
}

func TestBrotli_SmallBodyUncompressed(t *testing.T) {
	w := serveBrotli(brotliRouter("ok", "text/plain"))

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())
}

func TestBrotli_SkipsSpreadsheets(t *testing.T) {
	body := strings.Repeat("x", 4096)
	w := serveBrotli(brotliRouter(body, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())
}

func TestAcceptsBrotli(t *testing.T) {
	for header, want := range map[string]bool{
		"br":               true,
		"gzip, br;q=0.8":   true,
		"gzip, deflate":    false,
		"":                 false,
		"BR":               true,
		"gzip,brotli-fake": false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", header)
		assert.Equal(t, want, acceptsBrotli(req), header)
	}
}

package latex_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/jobtrail-api/internal/platform/latex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "No marker content", want: "No marker content"},
		{name: "specials", in: "R&D 100% $5 #1 a_b {x}", want: `R\&D 100\% \$5 \#1 a\_b \{x\}`},
		{name: "backslash", in: `C:\tmp`, want: `C:\textbackslash{}tmp`},
		{name: "tilde and caret", in: "a~b^c", want: `a\textasciitilde{}b\textasciicircum{}c`},
		{name: "typography", in: "Go \u2014 fast\u2026 \u201cquoted\u201d", want: `Go -- fast... "quoted"`},
		{name: "ligature", in: "\ufb01le", want: "file"},
		{name: "emoji dropped", in: "ship \U0001F680", want: "ship "},
		{name: "control chars", in: "a\x07b\r\nc", want: "a b\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, latex.Escape(tt.in))
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	resume, err := latex.RenderResume(latex.ResumeInput{
		Role: "Site Reliability Engineer", Company: "AT&T", Summary: "Cut p99 by 40%.",
	})
	require.NoError(t, err)
	assert.Contains(t, resume, `\section*{Site Reliability Engineer}`)
	assert.Contains(t, resume, `Prepared for AT\&T`)
	assert.Contains(t, resume, `Cut p99 by 40\%.`)

	cover, err := latex.RenderCoverLetter(latex.CoverInput{
		Role: "SRE", Company: "Acme", Date: "1 March 2026",
		ParagraphOne: "One.", ParagraphTwo: "Two.", ParagraphThree: "Three_",
	})
	require.NoError(t, err)
	assert.Contains(t, cover, `\begin{letter}{Acme}`)
	assert.Contains(t, cover, `\date{1 March 2026}`)
	assert.Contains(t, cover, `Three\_`)
}

func TestClient_Compile(t *testing.T) {
	t.Parallel()

	var gotKey, gotTex string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		var body struct {
			Tex string `json:"tex"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotTex = body.Tex
		_, _ = w.Write([]byte(`{"pdfUrl":"https://cdn.example.com/a.pdf"}`))
	}))
	defer srv.Close()

	c := latex.NewClient(srv.URL, "token", time.Second, nil)
	url, err := c.Compile(context.Background(), `\documentclass{article}`)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.pdf", url)
	assert.Equal(t, "token", gotKey)
	assert.Equal(t, `\documentclass{article}`, gotTex)
}

func TestClient_CompileErrors(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		_, err := latex.NewClient("", "", 0, nil).Compile(context.Background(), "x")
		assert.ErrorIs(t, err, latex.ErrNotConfigured)
	})

	t.Run("service failure", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := latex.NewClient(srv.URL, "t", time.Second, nil).Compile(context.Background(), "x")
		var renderErr *latex.RenderError
		require.True(t, errors.As(err, &renderErr))
		assert.Equal(t, http.StatusBadGateway, renderErr.StatusCode)
		assert.Equal(t, "LATEX_RENDER_FAILED_502", err.Error())
	})

	t.Run("missing pdf url", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := latex.NewClient(srv.URL, "t", time.Second, nil).Compile(context.Background(), "x")
		assert.Error(t, err)
	})
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stub(name string, text string, err error) Provider {
	return ProviderFunc{Name: name, Fn: func(context.Context, string) (string, error) {
		return text, err
	}}
}

func TestDispatcher_FallsBackToLastCandidate(t *testing.T) {
	var calls []string
	mk := func(name string, err error) Provider {
		return ProviderFunc{Name: name, Fn: func(context.Context, string) (string, error) {
			calls = append(calls, name)
			if err != nil {
				return "", err
			}
			return "answer from " + name, nil
		}}
	}

	d := NewDispatcher(0,
		mk("a", &ProviderError{Status: 503}),
		mk("b", &ProviderError{Status: 401}),
		mk("c", errors.New("boom")),
		mk("d", nil),
	)

	got, err := d.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "d", got.Model)
	assert.Equal(t, "answer from d", got.Text)
	assert.Equal(t, []string{"a", "b", "c", "d"}, calls, "auth failure does not stop the walk")
}

func TestDispatcher_StopsAtFirstSuccess(t *testing.T) {
	var second bool
	d := NewDispatcher(0,
		stub("a", "first", nil),
		ProviderFunc{Name: "b", Fn: func(context.Context, string) (string, error) {
			second = true
			return "second", nil
		}},
	)

	got, err := d.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Model)
	assert.False(t, second)
}

func TestDispatcher_AllFail(t *testing.T) {
	cases := []struct {
		name string
		errs []error
		want FailureKind
	}{
		{"last is quota", []error{errors.New("x"), &ProviderError{Status: 429}}, QuotaExceeded},
		{"quota wins over later kinds", []error{&ProviderError{Status: 429}, &ProviderError{Status: 503}}, QuotaExceeded},
		{"last kind otherwise", []error{&ProviderError{Status: http.StatusBadRequest}, &ProviderError{Status: 502}}, Unavailable},
		{"auth", []error{&ProviderError{Status: 403}}, AuthInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ps []Provider
			for i, e := range tc.errs {
				ps = append(ps, stub(fmt.Sprintf("m%d", i), "", e))
			}

			_, err := NewDispatcher(0, ps...).Complete(context.Background(), "hi")
			var de *DispatchError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.want, de.Kind)
			assert.Len(t, de.Attempts, len(tc.errs))
		})
	}
}

func TestDispatcher_OversizedPromptIsNotQuota(t *testing.T) {
	tooLong := &ProviderError{Status: 400, Code: "INVALID_ARGUMENT", Message: "The input token count (142913) exceeds the maximum number of tokens allowed (131072)."}

	_, err := NewDispatcher(0, stub("m0", "", tooLong)).Complete(context.Background(), "hi")
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, Unknown, de.Kind)
}

func TestDispatcher_EmptyRoster(t *testing.T) {
	_, err := NewDispatcher(0).Complete(context.Background(), "hi")
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, Unknown, de.Kind)
	assert.Empty(t, de.Attempts)
}

func TestDispatcher_TimeoutIsUnavailableAndWalkContinues(t *testing.T) {
	slow := ProviderFunc{Name: "slow", Fn: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	got, err := NewDispatcher(20*time.Millisecond, slow, stub("fast", "ok", nil)).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "fast", got.Model)

	_, err = NewDispatcher(20*time.Millisecond, slow).Complete(context.Background(), "hi")
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, Unavailable, de.Kind)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want FailureKind
	}{
		{&ProviderError{Kind: AuthInvalid, Status: 500}, AuthInvalid},
		{&ProviderError{Status: 429}, QuotaExceeded},
		{&ProviderError{Status: 400, Code: "RESOURCE_EXHAUSTED"}, QuotaExceeded},
		{&ProviderError{Status: 401}, AuthInvalid},
		{&ProviderError{Status: 500}, Unavailable},
		{&ProviderError{Status: 404, Message: "model not found"}, Unknown},
		{&ProviderError{Status: 400, Code: "INVALID_ARGUMENT", Message: "The input token count (142913) exceeds the maximum number of tokens allowed (131072)."}, Unknown},
		{&ProviderError{Status: 400, Message: "Quota exceeded for metric generate_content_requests"}, QuotaExceeded},
		{errors.New("request 4290 failed"), Unknown},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), Unavailable},
		{errors.New("You exceeded your current quota"), QuotaExceeded},
		{errors.New("API key not valid"), AuthInvalid},
		{errors.New("something odd"), Unknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), tc.err.Error())
	}
}

func TestRoster(t *testing.T) {
	r := DefaultRoster()
	c := r.Candidates()
	require.Len(t, c, 4)
	assert.Equal(t, "gemini-2.5-flash", c[0].Name)
	assert.True(t, c[0].Primary)

	c[0].Name = "changed"
	assert.Equal(t, "gemini-2.5-flash", r.Candidates()[0].Name, "Candidates returns a copy")

	p := r.Prefer("gemini-1.5-flash")
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-pro"}, p.Names())
	assert.True(t, p.Candidates()[0].Primary)
	assert.False(t, p.Candidates()[1].Primary)
	assert.Equal(t, "gemini-2.5-flash", r.Names()[0], "Prefer does not modify the receiver")

	assert.Equal(t, "custom", r.Prefer("custom").Names()[0])
	assert.Len(t, r.Prefer("custom").Names(), 5)
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
models:
  - name: gemini-2.5-flash-lite
    rate_class: 10 RPM
    primary: true
  - name: gemini-2.5-flash
    rate_class: 5 RPM
`), 0o644))

	r, err := LoadRoster(good)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash-lite", "gemini-2.5-flash"}, r.Names())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
models:
  - name: a
    primary: true
  - name: a
    primary: true
  - name: ""
`), 0o644))

	_, err = LoadRoster(bad)
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 3)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("models: []\n"), 0o644))
	_, err = LoadRoster(empty)
	assert.Error(t, err)
}

func TestGemini_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		b, _ := io.ReadAll(r.Body)
		var req generateRequest
		require.NoError(t, json.Unmarshal(b, &req))
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi "},{"text":"there"}]}}]}`)
	}))
	defer srv.Close()

	c := NewGemini("k", srv.URL+"/v1beta/")
	got, err := c.Generate(context.Background(), "gemini-2.5-flash", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", got)
}

func TestGemini_ErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   FailureKind
	}{
		{429, `{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, QuotaExceeded},
		{400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, AuthInvalid},
		{503, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`, Unavailable},
		{404, `{"error":{"code":404,"message":"models/nope is not found","status":"NOT_FOUND"}}`, Unknown},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		}))

		_, err := NewGemini("k", srv.URL).Generate(context.Background(), "m", "p")
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, tc.want, Classify(err), tc.body)
		srv.Close()
	}
}

func TestGemini_ProvidersFollowRoster(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		models = append(models, r.URL.Path)
		if len(models) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, NewGemini("k", srv.URL).Providers(DefaultRoster())...)
	got, err := d.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash-lite", got.Model)
	assert.Equal(t, []string{"/models/gemini-2.5-flash:generateContent", "/models/gemini-2.5-flash-lite:generateContent"}, models)
}

func TestGemini_NoKey(t *testing.T) {
	_, err := NewGemini("", "http://unused").Generate(context.Background(), "m", "p")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

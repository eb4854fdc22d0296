package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/skilltrack/internal/gaps"
	"github.com/abhisek/skilltrack/internal/profile"
)

func TestHTTPClient_SendProfile(t *testing.T) {
	var got profile.Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{ProfileURL: srv.URL})
	snap := &profile.Snapshot{UserID: "u1", Competencies: []*profile.Node{{CompetencyID: "C1", Coverage: 50}}}
	require.NoError(t, c.SendProfile(context.Background(), snap))
	assert.Equal(t, "u1", got.UserID)
	require.Len(t, got.Competencies, 1)
	assert.Equal(t, 50.0, got.Competencies[0].Coverage)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{GapsURL: srv.URL, MaxAttempts: 3})
	require.NoError(t, c.SendGaps(context.Background(), &gaps.Result{UserID: "u1"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{GapsURL: srv.URL, MaxAttempts: 5})
	err := c.SendGaps(context.Background(), &gaps.Result{UserID: "u1"})

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.Equal(t, "bad payload", serr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_EmptyURLDisabled(t *testing.T) {
	c := NewHTTPClient(HTTPConfig{})
	assert.NoError(t, c.SendProfile(context.Background(), &profile.Snapshot{}))
	assert.NoError(t, c.SendGaps(context.Background(), &gaps.Result{}))
}

type stubSender struct {
	profileErr, gapsErr error
	profiles, gaps      atomic.Int32
}

func (s *stubSender) SendProfile(context.Context, *profile.Snapshot) error {
	s.profiles.Add(1)
	return s.profileErr
}

func (s *stubSender) SendGaps(context.Context, *gaps.Result) error {
	s.gaps.Add(1)
	return s.gapsErr
}

func TestDispatch_FailureIsolated(t *testing.T) {
	s := &stubSender{gapsErr: errors.New("learning path down")}
	o := New(Config{Profiles: s, Gaps: s})

	res := o.Dispatch(context.Background(), Message{
		Profile: &profile.Snapshot{UserID: "u1"},
		Gaps:    &gaps.Result{UserID: "u1"},
	})
	assert.True(t, res.ProfileSent)
	assert.False(t, res.GapsSent)
	assert.NoError(t, res.ProfileErr)
	assert.EqualError(t, res.GapsErr, "learning path down")
	assert.ErrorContains(t, res.Err(), "learning path down")
}

func TestDispatch_NilPartsNotSent(t *testing.T) {
	s := &stubSender{}
	o := New(Config{Profiles: s, Gaps: s})

	res := o.Dispatch(context.Background(), Message{Profile: &profile.Snapshot{UserID: "u1"}})
	assert.True(t, res.ProfileSent)
	assert.False(t, res.GapsSent)
	assert.NoError(t, res.Err())
	assert.Equal(t, int32(1), s.profiles.Load())
	assert.Zero(t, s.gaps.Load())
}

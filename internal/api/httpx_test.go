package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/parser"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		fallback    int
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "no flights table",
			err:         fmt.Errorf("upload: %w", parser.ErrNoFlightsTable),
			fallback:    http.StatusBadRequest,
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "upload: " + parser.ErrNoFlightsTable.Error(),
		},
		{
			name:        "unknown home",
			err:         fmt.Errorf("%w: ZZZZ", coverage.ErrUnknownHome),
			fallback:    http.StatusInternalServerError,
			wantStatus:  http.StatusNotFound,
			wantMessage: coverage.ErrUnknownHome.Error() + ": ZZZZ",
		},
		{
			name:        "body too large",
			err:         &http.MaxBytesError{Limit: 10},
			fallback:    http.StatusBadRequest,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantMessage: "http: request body too large",
		},
		{
			name:        "client error keeps detail",
			err:         errors.New("bad column"),
			fallback:    http.StatusBadRequest,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "bad column",
		},
		{
			name:        "server error hides detail",
			err:         errors.New("dial tcp: connection refused"),
			fallback:    http.StatusInternalServerError,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "failed to load report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err, tt.fallback, "failed to load report")

			if rec.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := errorMessage(t, rec.Body.Bytes()); got != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dest struct {
		Scope string `json:"scope"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"scope":"all"}`, false},
		{"unknown field", `{"scope":"all","x":1}`, true},
		{"trailing data", `{"scope":"all"} {}`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			if err := DecodeJSON(req, &dest); (err != nil) != tt.wantErr {
				t.Errorf("DecodeJSON(%q) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
		})
	}
}

package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name         string
		err          *SousError
		expectedCode int
		expectedBody string
	}{
		{
			name:         "validation error omits success",
			err:          NewValidationError("test-id", MsgNoJSON),
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"No JSON data received","ingredients":[]}`,
		},
		{
			name:         "config error reports success false",
			err:          NewConfigError("test-id", "Gemini API not configured", nil),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"success":false,"error":"Gemini API not configured","ingredients":[]}`,
		},
		{
			name:         "provider error",
			err:          NewProviderError("test-id", "Gemini", errors.New("deadline exceeded")),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"success":false,"error":"Gemini API error: deadline exceeded","ingredients":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteError(rr, tt.err)

			if rr.Code != tt.expectedCode {
				t.Errorf("WriteError() status = %v, want %v", rr.Code, tt.expectedCode)
			}

			contentType := rr.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("WriteError() content-type = %v, want application/json", contentType)
			}

			if got := rr.Body.String(); got != tt.expectedBody+"\n" {
				t.Errorf("WriteError() body = %s, want %s", got, tt.expectedBody)
			}
		})
	}
}

func TestErrorResponse_IngredientsNeverNull(t *testing.T) {
	resp := NewInternalError("id", errors.New("x")).Response()

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	list, ok := decoded["ingredients"].([]interface{})
	if !ok {
		t.Fatalf("ingredients is %T, want array", decoded["ingredients"])
	}
	if len(list) != 0 {
		t.Errorf("ingredients = %v, want empty", list)
	}
}

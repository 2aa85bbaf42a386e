package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// MaxBodyBytes caps request bodies accepted by DecodeJSON.
const MaxBodyBytes = 4 << 20

type ErrorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body is required")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// QueryInt reads a positive integer query parameter, falling back to def
// when absent or invalid and capping at limit.
func QueryInt(r *http.Request, key string, def, limit int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > limit {
		return limit
	}
	return v
}

package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/learnhub/learnhub-lms/internal/apperr"
	auth "github.com/learnhub/learnhub-lms/internal/auth/middleware"
)

// POST /users
// Accepts a JSON array of users, a single JSON object, or a multipart
// file= upload holding CSV (name,email,role[,password]) or JSON.
func UpsertUsersHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []auth.UserInput
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				respondError(w, r, fmt.Errorf("%w: file required", apperr.ErrValidation))
				return
			}
			defer f.Close()
			rows, err = readUserRows(f)
			if err != nil {
				respondError(w, r, err)
				return
			}
		} else {
			var err error
			if rows, err = readUserRows(r.Body); err != nil {
				respondError(w, r, err)
				return
			}
		}
		for i := range rows {
			if err := validate.Struct(rows[i]); err != nil {
				respondError(w, r, fmt.Errorf("%w: row %d: %v", apperr.ErrValidation, i, err))
				return
			}
		}
		if len(rows) == 0 {
			respondJSON(w, http.StatusOK, map[string]any{"inserted": 0, "updated": 0})
			return
		}

		ins, upd, err := users.Upsert(r.Context(), rows)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"inserted": ins, "updated": upd})
	}
}

// readUserRows sniffs the first non-space byte to tell JSON from CSV.
func readUserRows(src io.Reader) ([]auth.UserInput, error) {
	body, err := io.ReadAll(io.LimitReader(src, 8<<20))
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(body))
	switch {
	case trimmed == "":
		return nil, nil
	case trimmed[0] == '[':
		var rows []auth.UserInput
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("%w: bad json: %v", apperr.ErrValidation, err)
		}
		return rows, nil
	case trimmed[0] == '{':
		var row auth.UserInput
		if err := json.Unmarshal(body, &row); err != nil {
			return nil, fmt.Errorf("%w: bad json: %v", apperr.ErrValidation, err)
		}
		return []auth.UserInput{row}, nil
	default:
		rows, err := parseCSV(strings.NewReader(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%w: bad csv: %v", apperr.ErrValidation, err)
		}
		return rows, nil
	}
}

// GET /users[?role=student]
func ListUsersHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("role")))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func parseCSV(r io.Reader) ([]auth.UserInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"name", "email"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, k string) string {
		if i, ok := idx[k]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var rows []auth.UserInput
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, auth.UserInput{
			ID:       col(rec, "id"),
			Name:     col(rec, "name"),
			Email:    col(rec, "email"),
			Role:     strings.ToLower(col(rec, "role")),
			Password: col(rec, "password"),
		})
	}
	return rows, nil
}

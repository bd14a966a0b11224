// Package clienttest runs an in-memory stand-in for the hosted backend:
// enough of the REST dialect (eq/gt/gte/lte/ilike filters, limit, single),
// the auth token grants, the storage upload surface, and the websocket push
// channel to test every component against realistic responses.
package clienttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/junaidrashid-git/storefront-core/config"
)

type Server struct {
	*httptest.Server

	mu      sync.Mutex
	tables  map[string][]map[string]any
	objects map[string][]byte
	users   map[string]string // email -> password
	tokens  map[string]string // access token -> user id
	nextID    int
	failOn    map[string]int
	failSkip  map[string]int
	protected map[string]bool
	rtConns   map[*rtConn]bool
	reqs      []string
}

func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		tables:  map[string][]map[string]any{},
		objects: map[string][]byte{},
		users:   map[string]string{},
		tokens:  map[string]string{},
		failOn:  map[string]int{},

		failSkip:  map[string]int{},
		protected: map[string]bool{},
		rtConns:   map[*rtConn]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Config returns client configuration pointing at this server.
func (s *Server) Config(stateDir string) config.Config {
	return config.Config{BaseURL: s.URL, AnonKey: "anon-key", CartDir: stateDir}
}

// AddUser registers credentials; the user id is derived from the email's
// local part.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
	return userIDFor(email)
}

func userIDFor(email string) string {
	return "user-" + strings.SplitN(email, "@", 2)[0]
}

// Seed inserts rows directly into a table.
func (s *Server) Seed(table string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if _, ok := row["id"]; !ok {
			s.nextID++
			row["id"] = fmt.Sprintf("row-%d", s.nextID)
		}
		s.tables[table] = append(s.tables[table], row)
	}
}

// Rows returns a copy of a table's rows.
func (s *Server) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// FailNext makes the next n requests matching "METHOD /path" answer 500.
func (s *Server) FailNext(method, path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[method+" "+path] = n
}

// FailAfter lets skip matching requests through, then fails the next n.
func (s *Server) FailAfter(method, path string, skip, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSkip[method+" "+path] = skip
	s.failOn[method+" "+path] = n
}

// Requests returns every request seen so far as "METHOD /path?query".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.reqs))
	copy(out, s.reqs)
	return out
}

// CountRequests counts requests whose "METHOD /path" matches prefix.
func (s *Server) CountRequests(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.reqs = append(s.reqs, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	key := r.Method + " " + r.URL.Path
	if s.failSkip[key] > 0 {
		s.failSkip[key]--
	} else if s.failOn[key] > 0 {
		s.failOn[key]--
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "induced failure"})
		return
	}
	s.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/auth/v1/"):
		s.handleAuth(w, r)
	case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		s.handleRest(w, r)
	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
		s.handleStorage(w, r)
	case r.URL.Path == "/realtime/v1/websocket":
		s.handleRealtime(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimPrefix(r.URL.Path, "/auth/v1/") {
	case "token":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		var uid, email string
		switch r.URL.Query().Get("grant_type") {
		case "password":
			email = body["email"]
			s.mu.Lock()
			pw, ok := s.users[email]
			s.mu.Unlock()
			if !ok || pw != body["password"] {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid login credentials"})
				return
			}
			uid = userIDFor(email)
		case "refresh_token":
			rt := body["refresh_token"]
			if !strings.HasPrefix(rt, "refresh-") {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid refresh token"})
				return
			}
			uid = strings.TrimPrefix(rt, "refresh-")
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "unsupported grant"})
			return
		}
		tok := "access-" + uid
		s.mu.Lock()
		s.tokens[tok] = uid
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  tok,
			"refresh_token": "refresh-" + uid,
			"expires_in":    3600,
			"user":          map[string]string{"id": uid, "email": email},
		})
	case "user":
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		uid, ok := s.tokens[tok]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": uid})
	case "logout":
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/")
	switch r.Method {
	case http.MethodPost, http.MethodPut:
		buf, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.objects[key] = buf
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"Key": key})
	case http.MethodGet:
		s.mu.Lock()
		buf, ok := s.objects[strings.TrimPrefix(key, "public/")]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(buf)
	default:
		http.NotFound(w, r)
	}
}

// Protect makes a table reject anonymous access with 403, standing in for
// row-level security.
func (s *Server) Protect(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protected[table] = true
}

func (s *Server) handleRest(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	q := r.URL.Query()

	s.mu.Lock()
	guarded := s.protected[table]
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	_, signedIn := s.tokens[tok]
	s.mu.Unlock()
	if guarded && !signedIn {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "permission denied"})
		return
	}

	single := strings.Contains(r.Header.Get("Accept"), "vnd.pgrst.object")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		rows := s.match(table, q)
		if lim, err := strconv.Atoi(q.Get("limit")); err == nil && lim > 0 && len(rows) > lim {
			rows = rows[:lim]
		}
		if single {
			if len(rows) != 1 {
				writeJSON(w, http.StatusNotAcceptable, map[string]string{"message": "JSON object requested, multiple (or no) rows returned"})
				return
			}
			writeJSON(w, http.StatusOK, rows[0])
			return
		}
		writeJSON(w, http.StatusOK, rows)

	case http.MethodPost:
		var incoming []map[string]any
		buf, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(buf, &incoming); err != nil {
			var one map[string]any
			if err := json.Unmarshal(buf, &one); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad payload"})
				return
			}
			incoming = []map[string]any{one}
		}
		for _, row := range incoming {
			if _, ok := row["id"]; !ok {
				s.nextID++
				row["id"] = fmt.Sprintf("row-%d", s.nextID)
			}
			if _, ok := row["created_at"]; !ok {
				row["created_at"] = time.Now().UTC().Format(time.RFC3339)
			}
			s.tables[table] = append(s.tables[table], row)
		}
		if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
			if single {
				writeJSON(w, http.StatusCreated, incoming[0])
				return
			}
			writeJSON(w, http.StatusCreated, incoming)
			return
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodPatch:
		var patch map[string]any
		json.NewDecoder(r.Body).Decode(&patch)
		for _, row := range s.match(table, q) {
			for k, v := range patch {
				row[k] = v
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		kept := make([]map[string]any, 0, len(s.tables[table]))
		matched := s.match(table, q)
		for _, row := range s.tables[table] {
			if !contains(matched, row) {
				kept = append(kept, row)
			}
		}
		s.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

// match filters a table by the request's predicate params. Caller holds the
// lock. Returned maps alias the stored rows so PATCH mutates in place.
func (s *Server) match(table string, q map[string][]string) []map[string]any {
	var out []map[string]any
	for _, row := range s.tables[table] {
		if rowMatches(row, q) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row map[string]any, q map[string][]string) bool {
	for col, vals := range q {
		switch col {
		case "select", "order", "limit":
			continue
		}
		for _, v := range vals {
			op, want, ok := strings.Cut(v, ".")
			if !ok {
				return false
			}
			if !applyOp(fmt.Sprint(row[col]), op, want) {
				return false
			}
		}
	}
	return true
}

func applyOp(got, op, want string) bool {
	switch op {
	case "eq":
		return got == want
	case "gt", "gte", "lte":
		g, err1 := strconv.ParseFloat(got, 64)
		w, err2 := strconv.ParseFloat(want, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		switch op {
		case "gt":
			return g > w
		case "gte":
			return g >= w
		default:
			return g <= w
		}
	case "ilike":
		pat := "^" + strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(want)), `\*`, ".*") + "$"
		ok, err := regexp.MatchString(pat, strings.ToLower(got))
		return err == nil && ok
	default:
		return false
	}
}

func contains(rows []map[string]any, row map[string]any) bool {
	for _, r := range rows {
		if fmt.Sprint(r["id"]) == fmt.Sprint(row["id"]) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

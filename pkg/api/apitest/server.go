// Package apitest runs an in-memory stand-in for the recruitment backend.
//
// It serves the same five routes as the hosted service, stores accounts with
// bcrypt over the client-side password digest, and issues HS256 bearer
// tokens. Every request is counted per path so tests can assert that an
// operation did or did not reach the network.
package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/recruitment/portal/pkg/crypto"
	jwtpkg "github.com/recruitment/portal/pkg/jwt"
)

const (
	tokenSecret = "apitest-secret"
	tokenTTL    = time.Hour
	// StateSuccess is the "state" value returned by a successful login.
	StateSuccess = "success"
)

type account struct {
	username       string
	email          string
	personalNumber string
	firstName      string
	lastName       string
	roleID         int
	hash           []byte
}

// Submission is an application received through /user/createNewApplication.
type Submission struct {
	Username    string
	Application map[string]any
}

type listEntry struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Status    string `json:"status"`
}

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	accounts    map[string]*account
	listing     []listEntry
	submissions []Submission
	hits        map[string]int
	requestIDs  []string
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		accounts: make(map[string]*account),
		hits:     make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/unauthorized/login", s.audit(s.handleLogin))
	mux.HandleFunc("/unauthorized/createAccount", s.audit(s.handleCreateAccount))
	mux.HandleFunc("/user/createNewApplication", s.audit(s.requireAuth(s.handleSubmit)))
	mux.HandleFunc("/recruiter/allApplications", s.audit(s.requireAuth(s.handleList)))
	mux.HandleFunc("/validate/checkIfLogIn", s.audit(s.requireAuth(s.handleCheck)))
	s.Server = httptest.NewServer(mux)
	return s
}

// AddUser registers an account directly. password is the plaintext the
// client will be given; it is stored the way the client transmits it.
func (s *Server) AddUser(username, password string, roleID int) error {
	hash, err := crypto.HashPassword(crypto.DigestPassword(password))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = &account{
		username:  username,
		email:     username + "@example.com",
		firstName: username,
		roleID:    roleID,
		hash:      hash,
	}
	return nil
}

// AddListing seeds a row of the recruiter overview.
func (s *Server) AddListing(firstName, lastName, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listing = append(s.listing, listEntry{FirstName: firstName, LastName: lastName, Status: status})
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests received on any path.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// RequestIDs returns the X-Request-ID values seen, in arrival order.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

// Submissions returns the applications received so far.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

// IssueToken signs a token for an existing or hypothetical user.
func (s *Server) IssueToken(username string, roleID int) (string, error) {
	return jwtpkg.GenerateToken(username, roleID, tokenSecret, tokenTTL)
}

func (s *Server) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.hits[req.URL.Path]++
		if id := req.Header.Get("X-Request-ID"); id != "" {
			s.requestIDs = append(s.requestIDs, id)
		}
		s.mu.Unlock()
		w.Header().Set("Access-Control-Expose-Headers", "Authorization")
		next(w, req)
	}
}

type authedHandler func(http.ResponseWriter, *http.Request, *jwtpkg.Claims)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, err := jwtpkg.Parse(token, tokenSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, req, claims)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		Username       string `json:"username"`
		HashedPassword string `json:"hashedPassword"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[payload.Username]
	s.mu.Unlock()
	if !ok || crypto.ComparePassword(acct.hash, payload.HashedPassword) != nil {
		writeError(w, http.StatusUnauthorized, "wrong username or password")
		return
	}
	token, err := s.IssueToken(acct.username, acct.roleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, map[string]any{
		"role_id": acct.roleID,
		"state":   StateSuccess,
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		User struct {
			Username       string `json:"username"`
			Email          string `json:"email"`
			PersonalNumber string `json:"personalNumber"`
			Password       string `json:"password"`
			FirstName      string `json:"firstName"`
			LastName       string `json:"lastName"`
		} `json:"user"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u := payload.User
	if strings.TrimSpace(u.Username) == "" || strings.TrimSpace(u.Password) == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing := map[string]bool{"username": false, "email": false, "personalNumber": false}
	conflict := false
	for _, acct := range s.accounts {
		if acct.username == u.Username {
			existing["username"], conflict = true, true
		}
		if u.Email != "" && acct.email == u.Email {
			existing["email"], conflict = true, true
		}
		if u.PersonalNumber != "" && acct.personalNumber == u.PersonalNumber {
			existing["personalNumber"], conflict = true, true
		}
	}
	if conflict {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "existingFields": existing})
		return
	}
	hash, err := crypto.HashPassword(u.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store account")
		return
	}
	s.accounts[u.Username] = &account{
		username:       u.Username,
		email:          u.Email,
		personalNumber: u.PersonalNumber,
		firstName:      u.FirstName,
		lastName:       u.LastName,
		roleID:         jwtpkg.RoleApplicant,
		hash:           hash,
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (s *Server) handleSubmit(w http.ResponseWriter, req *http.Request, claims *jwtpkg.Claims) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		Application map[string]any `json:"application"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, Submission{Username: claims.Username, Application: payload.Application})
	first, last := claims.Username, ""
	if acct, ok := s.accounts[claims.Username]; ok {
		first, last = acct.firstName, acct.lastName
	}
	s.listing = append(s.listing, listEntry{FirstName: first, LastName: last, Status: "unhandled"})
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleList(w http.ResponseWriter, req *http.Request, claims *jwtpkg.Claims) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if claims.RoleID != jwtpkg.RoleRecruiter {
		writeError(w, http.StatusForbidden, "unauthorized role")
		return
	}
	s.mu.Lock()
	rows := append([]listEntry{}, s.listing...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCheck(w http.ResponseWriter, req *http.Request, claims *jwtpkg.Claims) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loggedIn": true,
		"role_id":  claims.RoleID,
		"username": claims.Username,
	})
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

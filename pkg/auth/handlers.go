package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      Role      `json:"role"`
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// UserResponse represents a user in the response
type UserResponse struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// HandleLogin handles user login
func (am *AuthManager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	token, err := am.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	session, _ := am.ValidateSession(token)

	writeJSON(w, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Role:      session.Role,
	}, http.StatusOK)
}

// HandleLogout handles user logout
func (am *AuthManager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromRequest(r)
	if !ok {
		writeError(w, "Missing credentials", http.StatusBadRequest)
		return
	}

	am.InvalidateSession(token)

	writeJSON(w, SuccessResponse{Message: "Logged out successfully"}, http.StatusOK)
}

// HandleCreateUser handles user creation
func (am *AuthManager) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	// Validate role
	if req.Role != RoleAdmin && req.Role != RolePublish && req.Role != RoleWatch {
		writeError(w, "Invalid role. Must be 'admin', 'publish', or 'watch'", http.StatusBadRequest)
		return
	}

	err := am.CreateUser(req.Username, req.Password, req.Role)
	if err != nil {
		if err == ErrUserExists {
			writeError(w, "User already exists", http.StatusConflict)
		} else {
			writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, SuccessResponse{Message: "User created successfully"}, http.StatusCreated)
}

// HandleListUsers handles listing all users
func (am *AuthManager) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users := am.ListUsers()
	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, UserResponse{Username: u.Username, Role: u.Role})
	}
	writeJSON(w, response, http.StatusOK)
}

// HandleDeleteUser handles deleting a user
func (am *AuthManager) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		writeError(w, "Username is required", http.StatusBadRequest)
		return
	}

	if err := am.DeleteUser(username); err != nil {
		if err == ErrUserNotFound {
			writeError(w, "User not found", http.StatusNotFound)
		} else {
			writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, SuccessResponse{Message: "User deleted successfully"}, http.StatusOK)
}

// RegisterRoutes mounts the auth endpoints on a router. User management
// requires the manageUsers permission
func (am *AuthManager) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", am.HandleLogin)
	r.Post("/auth/logout", am.HandleLogout)

	r.Group(func(r chi.Router) {
		r.Use(am.Middleware(PermissionManageUsers))
		r.Post("/auth/users", am.HandleCreateUser)
		r.Get("/auth/users", am.HandleListUsers)
		r.Delete("/auth/users/{username}", am.HandleDeleteUser)
	})
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, payload interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, ErrorResponse{Error: message}, status)
}

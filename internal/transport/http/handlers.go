package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/locpham26/BoardGame-Server/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateRoomRequest is the body for room creation
type CreateRoomRequest struct {
	RoomID string `json:"roomId"`
}

// CreateRoomResponse is the response for room creation
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveRooms  int `json:"activeRooms"`
	TotalPlayers int `json:"totalPlayers"`
}

// handleCreateRoom handles POST /api/rooms
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_ROOM_ID", "Room id is required")
		return
	}

	session, err := s.registry.Create(req.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRoom) {
			s.sendError(w, http.StatusConflict, "DUPLICATE_ROOM", "A room with this id is already open")
		} else {
			s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create room")
		}
		return
	}

	s.sendSuccess(w, &CreateRoomResponse{
		RoomID: session.RoomID(),
	})
}

// handleListRooms handles GET /api/rooms
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, s.registry.List())
}

// handleGetRoom handles GET /api/rooms/{roomId}
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_ROOM_ID", "Room id is required")
		return
	}

	session, err := s.registry.Find(roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			s.sendError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "Room not found")
		} else {
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	s.sendSuccess(w, session.View())
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveRooms:  s.registry.RoomCount(),
		TotalPlayers: s.registry.PlayerCount(),
	})
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

package api

import (
	"net/http"

	"github.com/hackgods/clinic-booking/internal/auth"
)

func registerHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sess, err := svc.Register(r.Context(), auth.RegisterInput{
			FullName:   req.FullName,
			Email:      req.Email,
			Password:   req.Password,
			Role:       req.Role,
			FacilityID:  req.FacilityID,
			Specialty:   req.Specialty,
			InviteToken: req.InviteToken,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, AuthResponse{UserResponse: toUserResponse(sess.User), Token: sess.Token})
	}
}

func loginHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sess, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AuthResponse{UserResponse: toUserResponse(sess.User), Token: sess.Token})
	}
}

func meHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFrom(r)
		user, err := svc.Me(r.Context(), actor)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, MeResponse{UserResponse: toUserResponse(user), DoctorID: actor.DoctorID})
	}
}

func inviteAdminHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invite, err := svc.InviteFacilityAdmin(r.Context(), actorFrom(r))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, InviteResponse{
			InviteToken: invite.Token,
			FacilityID:  invite.FacilityID,
			ExpiresAt:   invite.ExpiresAt,
		})
	}
}

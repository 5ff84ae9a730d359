package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
)

func createFacilityHandler(dir *appointment.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateFacilityRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		f, err := dir.CreateFacility(r.Context(), actorFrom(r), appointment.CreateFacilityInput{
			Name:    req.Name,
			Type:    req.Type,
			Address: req.Address,
			Phone:   req.Phone,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toFacilityResponse(f))
	}
}

func listFacilitiesHandler(dir *appointment.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := dir.ListFacilities(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		out := make([]FacilityResponse, 0, len(items))
		for i := range items {
			out = append(out, toFacilityResponse(&items[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createDoctorHandler(dir *appointment.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		d, err := dir.CreateDoctor(r.Context(), actorFrom(r), appointment.CreateDoctorInput{
			FullName:  req.FullName,
			Specialty: req.Specialty,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toDoctorResponse(d))
	}
}

func listDoctorsHandler(dir *appointment.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := dir.ListDoctors(r.Context(), q.Get("type"), q.Get("facilityId"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponses(items))
	}
}

func facilityDoctorsHandler(dir *appointment.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := uuid.Parse(chi.URLParam(r, "facilityId"))
		if err != nil {
			handleServiceError(w, r, apperr.InvalidInput("facilityId must be a valid UUID"))
			return
		}

		items, err := dir.ListFacilityDoctors(r.Context(), facilityID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponses(items))
	}
}

func myFacilityDoctorsHandler(dir *appointment.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := dir.MyFacilityDoctors(r.Context(), actorFrom(r))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponses(items))
	}
}

package http

import (
	"net/http"

	"clinic-booking/internal/delivery/http/handler"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/pkg/response"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Router struct {
	router             *mux.Router
	log                *logrus.Logger
	authHandler        *handler.AuthHandler
	appointmentHandler *handler.AppointmentHandler
	doctorHandler      *handler.DoctorHandler
	patientHandler     *handler.PatientHandler
	auditLogHandler    *handler.AuditLogHandler
	authMiddleware     *middleware.AuthMiddleware
	corsMiddleware     *middleware.CORSMiddleware
	rateLimiter        *middleware.RateLimiter
}

func NewRouter(
	log *logrus.Logger,
	authHandler *handler.AuthHandler,
	appointmentHandler *handler.AppointmentHandler,
	doctorHandler *handler.DoctorHandler,
	patientHandler *handler.PatientHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
	rateLimiter *middleware.RateLimiter,
) *Router {
	return &Router{
		router:             mux.NewRouter(),
		log:                log,
		authHandler:        authHandler,
		appointmentHandler: appointmentHandler,
		doctorHandler:      doctorHandler,
		patientHandler:     patientHandler,
		auditLogHandler:    auditLogHandler,
		authMiddleware:     authMiddleware,
		corsMiddleware:     corsMiddleware,
		rateLimiter:        rateLimiter,
	}
}

// Setup registers every route and returns the root handler. CORS wraps the
// mux so preflight requests are answered even for routes that do not
// declare OPTIONS.
func (r *Router) Setup() http.Handler {
	r.router.Use(middleware.RequestLogger(r.log))

	r.router.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Auth routes (public)
	auth := r.router.PathPrefix("/auth").Subrouter()
	auth.Handle("/signup", r.rateLimiter.Handle(http.HandlerFunc(r.authHandler.Signup))).Methods(http.MethodPost)
	auth.Handle("/login", r.rateLimiter.Handle(http.HandlerFunc(r.authHandler.Login))).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", r.authHandler.RefreshToken).Methods(http.MethodPost)

	// Auth routes (protected)
	authProtected := r.router.PathPrefix("/auth").Subrouter()
	authProtected.Use(r.authMiddleware.Authenticate)
	authProtected.HandleFunc("/logout", r.authHandler.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", r.authHandler.GetCurrentUser).Methods(http.MethodGet)

	// Booking (public, caller optional)
	appointments := r.router.PathPrefix("/appointments").Subrouter()
	appointments.Handle("",
		r.rateLimiter.Handle(r.authMiddleware.OptionalAuthenticate(http.HandlerFunc(r.appointmentHandler.CreateAppointment))),
	).Methods(http.MethodPost)
	appointments.HandleFunc("/doctor/{doctorId}/booked", r.appointmentHandler.GetBookedSlots).Methods(http.MethodGet)
	appointments.HandleFunc("/doctor/{doctorId}/available", r.appointmentHandler.GetAvailableSlots).Methods(http.MethodGet)

	// Doctor self-service; registered before /doctors/{id} so "me" is not
	// taken for an id.
	doctorMe := r.router.PathPrefix("/doctors/me").Subrouter()
	doctorMe.Use(r.authMiddleware.Authenticate)
	doctorMe.Use(middleware.RequireDoctor)
	doctorMe.HandleFunc("/patients", r.patientHandler.GetDoctorPatients).Methods(http.MethodGet)
	doctorMe.HandleFunc("/patients", r.patientHandler.CreateDoctorPatient).Methods(http.MethodPost)
	doctorMe.HandleFunc("/appointments", r.appointmentHandler.GetDoctorAppointments).Methods(http.MethodGet)
	doctorMe.HandleFunc("/appointments/{id:[0-9]+}/status", r.appointmentHandler.UpdateStatus).Methods(http.MethodPatch)

	// Doctor directory (public)
	doctors := r.router.PathPrefix("/doctors").Subrouter()
	doctors.HandleFunc("/search", r.doctorHandler.SearchDoctors).Methods(http.MethodGet)
	doctors.HandleFunc("/by-id/{id}", r.doctorHandler.GetDoctor).Methods(http.MethodGet)

	// Doctor management (admin)
	doctorAdmin := r.router.PathPrefix("/doctors").Subrouter()
	doctorAdmin.Use(r.authMiddleware.Authenticate)
	doctorAdmin.Use(middleware.RequireAdmin)
	doctorAdmin.HandleFunc("", r.doctorHandler.GetAllDoctors).Methods(http.MethodGet)
	doctorAdmin.HandleFunc("", r.doctorHandler.CreateDoctor).Methods(http.MethodPost)
	doctorAdmin.HandleFunc("/{id:[0-9]+}", r.doctorHandler.DeleteDoctor).Methods(http.MethodDelete)

	// Patient self-service
	patientMe := r.router.PathPrefix("/patients/me").Subrouter()
	patientMe.Use(r.authMiddleware.Authenticate)
	patientMe.Use(middleware.RequirePatient)
	patientMe.HandleFunc("", r.patientHandler.GetMyProfile).Methods(http.MethodGet)
	patientMe.HandleFunc("", r.patientHandler.UpdateMyProfile).Methods(http.MethodPut)
	patientMe.HandleFunc("/appointments", r.appointmentHandler.GetPatientAppointments).Methods(http.MethodGet)

	// Patient management (admin)
	patientAdmin := r.router.PathPrefix("/patients").Subrouter()
	patientAdmin.Use(r.authMiddleware.Authenticate)
	patientAdmin.Use(middleware.RequireAdmin)
	patientAdmin.HandleFunc("", r.patientHandler.GetRegisteredPatients).Methods(http.MethodGet)
	patientAdmin.HandleFunc("/{id:[0-9]+}", r.patientHandler.DeletePatient).Methods(http.MethodDelete)

	// Audit trail (admin)
	admin := r.router.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id:[0-9]+}", r.auditLogHandler.GetAuditLog).Methods(http.MethodGet)

	r.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found")
	})
	r.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	return r.corsMiddleware.Handle(r.router)
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package routes

import (
	"marpelink-escrow-server/internal/config"
	"marpelink-escrow-server/internal/escrow"
	"marpelink-escrow-server/internal/handlers"
	"marpelink-escrow-server/internal/journal"
	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/middleware"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/token"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services are the components the HTTP layer is built on.
type Services struct {
	DB       *gorm.DB
	Config   *config.Config
	Ledger   *ledger.Ledger
	Journal  *journal.Journal
	Token    *token.Token
	Contract *escrow.Contract
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, s Services) {
	authHandler := handlers.NewAuthHandler(s.DB, s.Config)
	doctorHandler := handlers.NewDoctorHandler(s.Contract)
	consultationHandler := handlers.NewConsultationHandler(s.Contract, s.Token)
	tokenHandler := handlers.NewTokenHandler(s.Token, s.Contract.Address)
	eventHandler := handlers.NewEventHandler(s.Journal)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		public.GET("/doctors", doctorHandler.ListDoctors)
		public.GET("/doctors/:address", doctorHandler.GetDoctorInfo)
		public.GET("/doctors/:address/consultations", doctorHandler.GetDoctorConsultations)
		public.GET("/patients/:address/consultations", consultationHandler.GetPatientConsultations)
		public.GET("/consultations/:id", consultationHandler.GetConsultationDetails)
		public.GET("/escrow/balance", consultationHandler.GetContractBalance)

		public.GET("/token", tokenHandler.GetTokenInfo)
		public.GET("/token/balance/:address", tokenHandler.GetBalance)
		public.GET("/token/allowance/:owner/:spender", tokenHandler.GetAllowance)

		public.GET("/events", eventHandler.ListEvents)
		public.GET("/events/:hash", eventHandler.GetEventByHash)
	}

	// Authenticated routes. The token's address is the caller of every write.
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(s.Config))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		private.POST("/doctors/register", doctorHandler.RegisterDoctor)

		consultationRoutes := private.Group("/consultations")
		{
			consultationRoutes.POST("", consultationHandler.RequestConsultation)
			consultationRoutes.POST("/:id/complete", consultationHandler.CompleteConsultation)
			consultationRoutes.POST("/:id/cancel", consultationHandler.CancelConsultation)
			consultationRoutes.POST("/:id/rate", consultationHandler.RateDoctor)
		}

		tokenRoutes := private.Group("/token")
		{
			tokenRoutes.POST("/approve", tokenHandler.Approve)
			tokenRoutes.POST("/approve-escrow", tokenHandler.ApproveEscrow)
			tokenRoutes.POST("/transfer", tokenHandler.Transfer)
			tokenRoutes.POST("/faucet", tokenHandler.Faucet)
			tokenRoutes.POST("/mint", middleware.RoleAuthMiddleware(models.RoleAdmin), tokenHandler.Mint)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		head := s.Ledger.Head()
		c.JSON(200, gin.H{
			"status":         "UP",
			"height":         head.Height,
			"head":           head.TxHash,
			"journalBacklog": s.Ledger.Backlog(),
		})
	})
}

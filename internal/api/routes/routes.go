package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sustainareview/sustainareview-api/internal/api/handlers"
	"github.com/sustainareview/sustainareview-api/internal/api/middleware"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

// Dependencies are the shared clients built by the server command.
// Cache, Publisher, EmailChecker and Mailer may be nil.
type Dependencies struct {
	DB           *gorm.DB
	Storage      services.PhotoStorage
	Cache        services.CatalogCache
	Publisher    services.EventPublisher
	EmailChecker services.EmailChecker
	Mailer       services.Mailer
}

func SetupRoutes(router *gin.Engine, cfg *config.Config, deps Dependencies) {
	// Middleware
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RateLimitMiddleware(cfg))

	// Local uploads are served by the API itself
	if local, ok := deps.Storage.(*services.LocalStorage); ok {
		router.Static("/uploads", local.Dir())
	}

	// Initialize services
	authService := services.NewAuthService(deps.DB, cfg, deps.EmailChecker, deps.Mailer)
	userService := services.NewUserService(deps.DB, deps.Storage, deps.Cache)
	productService := services.NewProductService(deps.DB, deps.Cache)
	reviewService := services.NewReviewService(deps.DB, deps.Storage, deps.Cache, deps.Publisher)
	bookmarkService := services.NewBookmarkService(deps.DB)
	adminService := services.NewAdminService(deps.DB, deps.Storage, deps.Cache, deps.Publisher)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	passwordHandler := handlers.NewPasswordHandler(authService)
	userHandler := handlers.NewUserHandler(userService, reviewService, bookmarkService)
	productHandler := handlers.NewProductHandler(productService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	bookmarkHandler := handlers.NewBookmarkHandler(bookmarkService)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "message": "Server is running"})
	})

	requireAuth := middleware.AuthMiddleware(cfg)
	optionalAuth := middleware.OptionalAuth(cfg)

	// The same API is mounted at the root and under /api/v1
	for _, api := range []*gin.RouterGroup{router.Group(""), router.Group("/api/v1")} {
		// Registration and account
		api.POST("/users", authHandler.Register)
		me := api.Group("/users/me", requireAuth)
		{
			me.GET("", userHandler.GetProfile)
			me.PUT("", userHandler.UpdateProfile)
			me.DELETE("", userHandler.DeleteAccount)
			me.PUT("/password", userHandler.ChangePassword)
			me.GET("/reviews", userHandler.GetMyReviews)
			me.GET("/bookmarks", userHandler.GetMyBookmarks)
		}

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/reset-password-request", passwordHandler.ForgotPassword)
			auth.GET("/reset-password/validate", passwordHandler.ValidateResetToken)
			auth.POST("/reset-password", passwordHandler.ResetPassword)
		}

		// Catalog
		api.GET("/categories", productHandler.GetCategories)
		api.GET("/attributes", productHandler.GetAttributes)
		products := api.Group("/products")
		{
			products.GET("", productHandler.GetAllProducts)
			products.GET("/:id", productHandler.GetProduct)
			products.GET("/:id/reviews", reviewHandler.GetProductReviews)
			products.POST("/:id/reviews", requireAuth, reviewHandler.SubmitReview)
			products.POST("/:id/bookmark", requireAuth, bookmarkHandler.AddBookmark)
			products.DELETE("/:id/bookmark", requireAuth, bookmarkHandler.RemoveBookmark)
		}

		// Review routes
		reviews := api.Group("/reviews")
		{
			reviews.GET("/:id", optionalAuth, reviewHandler.GetReview)
			reviews.PUT("/:id", requireAuth, reviewHandler.UpdateReview)
			reviews.DELETE("/:id", requireAuth, reviewHandler.DeleteReview)
			reviews.POST("/:id/vote", requireAuth, reviewHandler.VoteReview)
		}

		api.POST("/upload/photo", requireAuth, reviewHandler.UploadPhoto)

		// Admin routes
		admin := api.Group("/admin", requireAuth, middleware.AdminOnly())
		{
			admin.GET("/dashboard", adminHandler.GetDashboard)

			// Review moderation
			admin.GET("/reviews", adminHandler.GetReviews)
			admin.PATCH("/reviews/:id/moderation", adminHandler.ModerateReview)

			// Product management
			admin.POST("/products", adminHandler.CreateProduct)
			admin.POST("/products/import", adminHandler.UploadCSV)
			admin.PUT("/products/:id", adminHandler.UpdateProduct)
			admin.DELETE("/products/:id", adminHandler.DeleteProduct)

			// Taxonomy
			admin.POST("/categories", adminHandler.CreateCategory)
			admin.POST("/attributes", adminHandler.CreateAttribute)
		}
	}

	logger.Info("Routes initialized successfully")
}

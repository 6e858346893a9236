package routes

import (
	"net/http"
	"time"

	"confique/config"
	"confique/handlers"
	"confique/logger"
	"confique/middleware"
	"confique/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:5500",
	"http://127.0.0.1:5500",
}

// Options carries the router's collaborators. Limiter and Realtime are
// optional.
type Options struct {
	Config   *config.Config
	Log      zerolog.Logger
	Auth     *middleware.Auth
	Limiter  *middleware.IPRateLimiter
	Realtime *websocket.Manager
}

func allowedOrigins(cfg *config.Config) []string {
	origins := []string{cfg.FrontendURL}
	if !cfg.IsProduction() {
		for _, o := range devOrigins {
			if o != cfg.FrontendURL {
				origins = append(origins, o)
			}
		}
	}
	return origins
}

func SetupRouter(api *handlers.API, o Options) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinLogger(o.Log), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(o.Config),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if o.Limiter != nil {
		router.Use(o.Limiter.Middleware())
	}

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	if o.Realtime != nil {
		router.GET("/ws", o.Realtime.Handler(o.Auth.UserID))
	}

	required := o.Auth.Required()
	optional := o.Auth.Optional()
	admin := middleware.RequireAdmin(api.IsAdmin)

	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", api.Signup)
		auth.POST("/login", api.Login)
		auth.GET("/google", api.GoogleLogin)
		auth.GET("/google/callback", api.GoogleCallback)
		auth.POST("/google/credential", api.GoogleCredential)
		auth.GET("/me", required, api.Me)
	}

	posts := router.Group("/api/posts")
	{
		posts.GET("", optional, api.ListPosts)
		posts.GET("/showcase/leaderboard", optional, api.ShowcaseLeaderboard)
		posts.GET("/registrations/counts", api.RegistrationCounts)
		posts.GET("/:id", optional, api.GetPost)
		posts.POST("/:id/view", api.ViewPost)

		posts.POST("", required, api.CreatePost)
		posts.PUT("/:id", required, api.UpdatePost)
		posts.DELETE("/:id", required, api.DeletePost)
		posts.PATCH("/:id/status", required, admin, api.UpdatePostStatus)

		posts.POST("/:id/like", required, api.LikePost)
		posts.DELETE("/:id/like", required, api.UnlikePost)
		posts.POST("/:id/upvote", required, api.UpvotePost)
		posts.DELETE("/:id/upvote", required, api.RemoveUpvote)
		posts.POST("/:id/comments", required, api.AddComment)
		posts.DELETE("/:id/comments/:commentId", required, api.DeleteComment)
		posts.POST("/:id/bookmark", required, api.BookmarkPost)
		posts.POST("/:id/report", required, api.ReportPost)

		posts.POST("/:id/register", required, api.RegisterForEvent)
		posts.GET("/:id/registrations", required, api.ListRegistrations)
		posts.GET("/:id/registrations/export", required, api.ExportRegistrations)
		posts.PATCH("/:id/registrations/:regId/payment", required, api.UpdatePaymentStatus)
	}

	users := router.Group("/api/users")
	{
		users.PUT("/me", required, api.UpdateMe)
		users.POST("/me/showcase-stats", required, api.RefreshShowcaseStats)
		users.GET("/me/bookmarks", required, api.MyBookmarks)
		users.GET("/me/upvoted", required, api.MyUpvoted)
		users.GET("/me/likes", required, api.MyLikes)
		users.GET("/me/registrations", required, api.MyRegistrations)
		users.GET("/:id", api.GetUser)
	}

	notes := router.Group("/api/notifications")
	{
		notes.GET("/vapid-key", api.VapidPublicKey)
		notes.POST("/subscribe", required, api.Subscribe)
		notes.GET("", required, api.ListNotifications)
		notes.GET("/unread-count", required, api.UnreadCount)
		notes.PATCH("/read-all", required, api.MarkAllNotificationsRead)
		notes.PATCH("/:id/read", required, api.MarkNotificationRead)
		notes.DELETE("/:id", required, api.DeleteNotification)
		notes.DELETE("", required, api.DeleteAllNotifications)
	}

	cron := router.Group("/api/cron", middleware.CronSecret(o.Config.CronSecret))
	{
		cron.GET("/cleanup-notifications", api.CleanupNotifications)
		cron.POST("/cleanup-notifications", api.CleanupNotifications)
	}

	return router
}

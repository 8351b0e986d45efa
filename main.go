package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-svc/cache"
	"storefront-svc/config"
	"storefront-svc/database"
	"storefront-svc/handlers"
	"storefront-svc/kafka"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/paypal"
	"storefront-svc/rpc"
	"storefront-svc/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	decimal.MarshalJSONWithoutQuotes = true

	// Initialize database
	db, err := database.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSuperAdmin(context.Background(), db, cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
		logger.Fatal("Failed to seed super admin", zap.Error(err))
	}

	// Initialize Redis cache
	redisClient, err := cache.InitRedis(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()
	productCache := cache.NewProductCache(redisClient)

	// Initialize Kafka
	producer, err := kafka.InitProducer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()
	publisher := kafka.NewPublisher(producer, cfg.KafkaOrderTopic, logger)

	consumer, err := kafka.InitConsumer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	paypalClient := paypal.NewClient(paypal.Config{
		BaseURL:      cfg.PayPalBaseURL,
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		Currency:     cfg.PayPalCurrency,
	}, logger)

	couponService := services.NewCouponService(db, logger)
	orderService := services.NewOrderService(db, publisher, logger)
	paymentService := services.NewPaymentService(paypalClient, logger)
	settlement := services.NewSettlementEngine(db, publisher, productCache, services.SettlementOptions{
		GuardStock:  cfg.GuardStock,
		GuardCoupon: cfg.GuardCoupon,
	}, logger)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	secret := []byte(cfg.JWTSecret)
	authenticated := middleware.AuthMiddleware(secret)
	superAdmin := middleware.RequireRole(models.RoleSuperAdmin)

	authHandler := handlers.NewAuthHandler(db, secret, logger)
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
	}

	productHandler := handlers.NewProductHandler(db, productCache, logger)
	products := router.Group("/api/products")
	{
		// Catalog reads are public.
		products.GET("/fetch-client-products", productHandler.FetchClientProducts)
		products.GET("/:id", productHandler.GetProduct)
		products.GET("/fetch-admin-products", authenticated, superAdmin, productHandler.FetchAdminProducts)
		products.POST("/create-new-product", authenticated, superAdmin, productHandler.CreateProduct)
		products.PUT("/:id", authenticated, superAdmin, productHandler.UpdateProduct)
		products.DELETE("/:id", authenticated, superAdmin, productHandler.DeleteProduct)
	}

	settingsHandler := handlers.NewSettingsHandler(db, productCache, logger)
	settings := router.Group("/api/settings", authenticated)
	{
		settings.POST("/update-feature-products", superAdmin, settingsHandler.UpdateFeaturedProducts)
		settings.GET("/fetch-feature-products", settingsHandler.FetchFeaturedProducts)
		settings.POST("/banners", superAdmin, settingsHandler.AddFeatureBanners)
		settings.GET("/get-banners", settingsHandler.GetFeatureBanners)
	}

	cartHandler := handlers.NewCartHandler(db, logger)
	cart := router.Group("/api/cart", authenticated)
	{
		cart.GET("/fetch-cart", cartHandler.FetchCart)
		cart.POST("/add-to-cart", cartHandler.AddToCart)
		cart.DELETE("/remove/:id", cartHandler.RemoveFromCart)
		cart.PUT("/update/:id", cartHandler.UpdateCartItemQuantity)
		cart.POST("/clear-cart", cartHandler.ClearCart)
	}

	addressHandler := handlers.NewAddressHandler(db, logger)
	addresses := router.Group("/api/addresses", authenticated)
	{
		addresses.POST("/add-address", addressHandler.AddAddress)
		addresses.GET("/get-address", addressHandler.GetAddresses)
		addresses.PUT("/update-address/:id", addressHandler.UpdateAddress)
		addresses.DELETE("/delete-address/:id", addressHandler.DeleteAddress)
	}

	couponHandler := handlers.NewCouponHandler(couponService, logger)
	coupons := router.Group("/api/coupons", authenticated)
	{
		coupons.POST("/create-coupons", superAdmin, couponHandler.CreateCoupon)
		coupons.GET("/fetch-all-coupons", couponHandler.FetchAllCoupons)
		coupons.POST("/validate", couponHandler.ValidateCoupon)
		coupons.DELETE("/:id", superAdmin, couponHandler.DeleteCoupon)
	}

	orderHandler := handlers.NewOrderHandler(paymentService, settlement, orderService, logger)
	orders := router.Group("/api/order", authenticated)
	{
		orders.POST("/create-paypal-order", orderHandler.CreatePayPalOrder)
		orders.POST("/capture-paypal-order", orderHandler.CapturePayPalOrder)
		orders.POST("/create-final-order", orderHandler.CreateFinalOrder)
		orders.GET("/get-single-order/:orderId", orderHandler.GetSingleOrder)
		orders.GET("/get-order-by-user-id", orderHandler.GetOrdersByUser)
		orders.GET("/get-all-orders-for-admin", superAdmin, orderHandler.GetAllOrdersForAdmin)
		orders.PUT("/:orderId/status", superAdmin, orderHandler.UpdateOrderStatus)
	}

	// Start REST server
	restSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Storefront REST API started", zap.String("addr", cfg.HTTPAddr))

	// Start gRPC server
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	rpc.RegisterOrderQueryServer(grpcServer, rpc.NewOrderQueryService(orderService, logger))

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	logger.Info("Storefront gRPC server started", zap.String("addr", cfg.GRPCAddr))

	// Start fulfillment consumer
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	fulfillment := kafka.NewFulfillmentConsumer(consumer, cfg.KafkaFulfillmentTopic, orderService, logger)
	go func() {
		if err := fulfillment.Start(consumerCtx); err != nil {
			logger.Error("Kafka consumer stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	stopConsumer()

	// Shutdown REST server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := restSrv.Shutdown(ctx); err != nil {
		logger.Error("REST server forced to shutdown", zap.Error(err))
	}

	// Shutdown gRPC server
	grpcServer.GracefulStop()

	logger.Info("Servers exited")
}

package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"bookmarket/internal/auth"
	"bookmarket/internal/domain"
	"bookmarket/internal/metrics"
	"bookmarket/internal/service"
	"bookmarket/internal/storage"
)

// Options carries the dependencies and limits of the HTTP surface.
type Options struct {
	Users    service.UserService
	Listings service.ListingService
	Resolver *auth.Resolver
	Images   storage.Service
	Logger   *logrus.Logger

	// Metrics and Gatherer are optional; /metrics is only served with a Gatherer.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// UploadDir is served under /upload when set.
	UploadDir    string
	MaxFiles     int
	MaxFileBytes int64

	AuthRate  rate.Limit
	AuthBurst int
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	listings service.ListingService
	resolver *auth.Resolver
	images   storage.Service
	logger   *logrus.Logger
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer

	uploadDir    string
	maxFiles     int
	maxFileBytes int64
	authLimiter  *ipRateLimiter
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 10
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 10 << 20
	}
	if opts.AuthRate <= 0 {
		opts.AuthRate = 1
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 5
	}
	registerValidators()

	return &Handler{
		users:        opts.Users,
		listings:     opts.Listings,
		resolver:     opts.Resolver,
		images:       opts.Images,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		gatherer:     opts.Gatherer,
		uploadDir:    opts.UploadDir,
		maxFiles:     opts.MaxFiles,
		maxFileBytes: opts.MaxFileBytes,
		authLimiter:  newIPRateLimiter(opts.AuthRate, opts.AuthBurst, 10*time.Minute),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.requestLogger(), corsMiddleware())

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", h.rateLimit(), h.signup)
		authGroup.POST("/login", h.rateLimit(), h.login)
		authGroup.POST("/profile", h.requireUser(), h.profile)
	}

	books := router.Group("/books")
	{
		books.GET("", h.searchListings)
		books.GET("/all", h.listAll)
		books.GET("/mine", h.requireUser(), h.listOwned)
		books.GET("/myfavourite", h.requireUser(), h.listFavorites)
		books.POST("/addfavourite/:id", h.requireUser(), h.addFavorite)
		books.POST("/refavourite/:id", h.requireUser(), h.removeFavorite)
		books.POST("/create", h.requireUser(), h.createListing)
		books.PATCH("/my/:id", h.requireUser(), h.changeState)
		books.PATCH("/:id", h.requireUser(), h.editListing)
		books.GET("/:id", h.optionalUser(), h.getListing)
		books.DELETE("/:id", h.requireUser(), h.deleteListing)
	}

	if h.uploadDir != "" {
		router.Static("/upload", h.uploadDir)
	}
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(h.gatherer)))
	}
	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bindingError(err))
		return
	}

	token, err := h.users.Signup(c.Request.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, TokenResponse{Token: token})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bindingError(err))
		return
	}

	token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (h *Handler) profile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) searchListings(c *gin.Context) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	listings, err := h.listings.Search(c.Request.Context(), c.Query("keyword"), page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingsToResponse(listings, ""))
}

func (h *Handler) listAll(c *gin.Context) {
	listings, err := h.listings.ListAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingsToResponse(listings, ""))
}

func (h *Handler) listOwned(c *gin.Context) {
	viewer := currentUser(c)
	listings, err := h.listings.ListOwned(c.Request.Context(), viewer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingsToResponse(listings, viewer))
}

func (h *Handler) listFavorites(c *gin.Context) {
	viewer := currentUser(c)
	listings, err := h.listings.ListFavorites(c.Request.Context(), viewer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingsToResponse(listings, viewer))
}

func (h *Handler) getListing(c *gin.Context) {
	listing, err := h.listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingToResponse(*listing, currentUser(c)))
}

func (h *Handler) addFavorite(c *gin.Context) {
	viewer := currentUser(c)
	listing, err := h.listings.AddFavorite(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingToResponse(*listing, viewer))
}

func (h *Handler) removeFavorite(c *gin.Context) {
	viewer := currentUser(c)
	listing, err := h.listings.RemoveFavorite(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingToResponse(*listing, viewer))
}

func (h *Handler) createListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBind(&req); err != nil {
		h.writeError(c, bindingError(err))
		return
	}

	images, err := h.saveUploads(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	viewer := currentUser(c)
	listing, err := h.listings.Create(c.Request.Context(), viewer, service.CreateListingInput{
		Name:        req.Name,
		Brand:       req.Brand,
		Price:       req.Price,
		Category:    req.Category,
		Description: req.Description,
		State:       req.State,
		Images:      images,
	})
	if err != nil {
		h.discardUploads(c, images)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listingToResponse(*listing, viewer))
}

func (h *Handler) editListing(c *gin.Context) {
	var req editListingRequest
	if err := c.ShouldBind(&req); err != nil {
		h.writeError(c, bindingError(err))
		return
	}

	images, err := h.saveUploads(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	patch := req.toPatch()
	if len(images) > 0 {
		patch.Images = images
	}

	viewer := currentUser(c)
	listing, err := h.listings.Edit(c.Request.Context(), c.Param("id"), viewer, patch)
	if err != nil {
		h.discardUploads(c, images)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingToResponse(*listing, viewer))
}

func (h *Handler) changeState(c *gin.Context) {
	var req changeStateRequest
	if err := c.ShouldBind(&req); err != nil {
		h.writeError(c, bindingError(err))
		return
	}

	viewer := currentUser(c)
	listing, err := h.listings.ChangeState(c.Request.Context(), c.Param("id"), viewer, req.State)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingToResponse(*listing, viewer))
}

func (h *Handler) deleteListing(c *gin.Context) {
	id := c.Param("id")
	if err := h.listings.Delete(c.Request.Context(), id, currentUser(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "listing deleted", "deleted": id})
}

// saveUploads stores the multipart "images" files of the request. Requests
// that are not multipart carry no images.
func (h *Handler) saveUploads(c *gin.Context) ([]string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, domain.InvalidArgument("malformed multipart body")
	}

	files := form.File["images"]
	if len(files) > h.maxFiles {
		return nil, domain.InvalidArgument("at most %d images are allowed", h.maxFiles)
	}
	for _, fh := range files {
		if fh.Size > h.maxFileBytes {
			return nil, domain.InvalidArgument("image %q exceeds %d bytes", fh.Filename, h.maxFileBytes)
		}
	}
	if len(files) > 0 && h.images == nil {
		return nil, domain.InvalidArgument("image uploads are not configured")
	}

	refs := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.discardUploads(c, refs)
			return nil, err
		}
		ref, err := h.images.Save(c.Request.Context(), fh.Filename, f)
		_ = f.Close()
		if err != nil {
			h.discardUploads(c, refs)
			return nil, err
		}
		refs = append(refs, ref)
	}
	if h.metrics != nil && len(refs) > 0 {
		h.metrics.ImagesUploaded(len(refs))
	}
	return refs, nil
}

func (h *Handler) discardUploads(c *gin.Context, refs []string) {
	for _, ref := range refs {
		if err := h.images.Delete(c.Request.Context(), ref); err != nil {
			h.logger.WithField("image", ref).Warnf("discard upload: %v", err)
		}
	}
}

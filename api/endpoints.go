package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"micro-twitter/auth"
	"micro-twitter/domain/tweet"
	"micro-twitter/feed"
	"micro-twitter/hub"
	"micro-twitter/middleware"
	"micro-twitter/monitoring"
	"micro-twitter/storage"
	"micro-twitter/toggle"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HTTPHandler struct {
	Storage storage.Storage
	Feed    *feed.Service
	Toggle  *toggle.Engine
	Hub     *hub.Hub
	Auth    *auth.Service
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewRouter wires the HTTP surface onto the handler.
func NewRouter(h *HTTPHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.RateLimit)
	r.Use(mux.MiddlewareFunc(monitoring.InstrumentHandler))

	r.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(mux.MiddlewareFunc(h.Auth.Authenticate))
	protected.HandleFunc("/posts", h.CreateTweet).Methods(http.MethodPost)
	protected.HandleFunc("/posts", h.GetFeed).Methods(http.MethodGet)
	protected.HandleFunc("/posts/{id}", h.ModifyTweet).Methods(http.MethodPut)
	protected.HandleFunc("/posts/{id}", h.DeleteTweet).Methods(http.MethodDelete)
	protected.HandleFunc("/posts/{id}/like", h.LikeTweet).Methods(http.MethodPost)
	protected.HandleFunc("/posts/{id}/retweet", h.RetweetTweet).Methods(http.MethodPost)
	protected.HandleFunc("/users/{id}/follow", h.FollowUser).Methods(http.MethodPost)
	protected.HandleFunc("/users/{id}", h.GetUser).Methods(http.MethodGet)
	return r
}

func (h *HTTPHandler) Signup(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	u, err := h.Auth.Signup(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidInput) || errors.Is(err, storage.ErrUserExists) {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusCreated, u.ToPublic())
}

func (h *HTTPHandler) Login(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	token, err := h.Auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(rw, http.StatusUnauthorized, "Not Allowed")
			return
		}
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"token": token})
}

func (h *HTTPHandler) CreateTweet(rw http.ResponseWriter, r *http.Request) {
	callerId, ok := auth.CallerId(r.Context())
	if !ok {
		rw.WriteHeader(http.StatusUnauthorized)
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Content == "" {
		writeError(rw, http.StatusBadRequest, "content is required")
		return
	}
	t := &tweet.Tweet{Content: body.Content}
	if err := h.Storage.CreateTweet(r.Context(), callerId, t); err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	monitoring.TweetsCreated.Inc()
	h.Feed.OnTweetCreated(r.Context(), t)
	h.Hub.BroadcastNewPost(t)
	writeJSON(rw, http.StatusCreated, t)
}

func (h *HTTPHandler) GetFeed(rw http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	entries, err := h.Feed.ReadPage(r.Context(), page)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, entries)
}

func (h *HTTPHandler) ModifyTweet(rw http.ResponseWriter, r *http.Request) {
	callerId, _ := auth.CallerId(r.Context())
	var body struct {
		Content string `json:"content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	t, err := h.Storage.UpdateTweetContent(r.Context(), mux.Vars(r)["id"], callerId, body.Content)
	if err != nil {
		writeStorageError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, t)
}

func (h *HTTPHandler) DeleteTweet(rw http.ResponseWriter, r *http.Request) {
	callerId, _ := auth.CallerId(r.Context())
	tweetId := mux.Vars(r)["id"]
	if err := h.Storage.DeleteTweet(r.Context(), tweetId, callerId); err != nil {
		writeStorageError(rw, err)
		return
	}
	h.Feed.OnTweetDeleted(r.Context(), tweetId)
	writeJSON(rw, http.StatusOK, map[string]string{"message": "Tweet deleted"})
}

func (h *HTTPHandler) LikeTweet(rw http.ResponseWriter, r *http.Request) {
	callerId, _ := auth.CallerId(r.Context())
	t, _, err := h.Toggle.ToggleLike(r.Context(), mux.Vars(r)["id"], callerId)
	if err != nil {
		writeStorageError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, t)
}

func (h *HTTPHandler) RetweetTweet(rw http.ResponseWriter, r *http.Request) {
	callerId, _ := auth.CallerId(r.Context())
	t, _, err := h.Toggle.ToggleRetweet(r.Context(), mux.Vars(r)["id"], callerId)
	if err != nil {
		writeStorageError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, t)
}

func (h *HTTPHandler) FollowUser(rw http.ResponseWriter, r *http.Request) {
	callerId, _ := auth.CallerId(r.Context())
	_, err := h.Toggle.ToggleFollow(r.Context(), mux.Vars(r)["id"], callerId)
	if err != nil {
		if errors.Is(err, toggle.ErrSelfFollow) {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}
		writeStorageError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"message": "Follow status updated"})
}

func (h *HTTPHandler) GetUser(rw http.ResponseWriter, r *http.Request) {
	u, err := h.Storage.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStorageError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, u.ToPublic())
}

// ServeWS upgrades the request onto the fanout hub.
func (h *HTTPHandler) ServeWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	client := hub.NewClient(h.Hub, conn)
	h.Hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	raw, _ := json.Marshal(v)
	_, _ = rw.Write(raw)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, ErrorResponse{Error: msg})
}

func writeStorageError(rw http.ResponseWriter, err error) {
	switch {
	// Ownership failures surface as 404: a non-author cannot tell
	// "someone else's tweet" from "no such tweet".
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrForbiddenAccess):
		writeError(rw, http.StatusNotFound, "Not found")
	default:
		writeError(rw, http.StatusInternalServerError, err.Error())
	}
}

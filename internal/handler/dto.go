package handler

import "shortlink/internal/model"

type shortenRequest struct {
	OriginalURL string `json:"originalUrl"`
}

type shortenResponse struct {
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
	ShortURL    string `json:"shortUrl"`
	Cached      bool   `json:"cached"`
}

type recentResponse struct {
	URLs []model.URLMapping `json:"urls"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

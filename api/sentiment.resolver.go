package api

import (
	"errors"
	"fmt"
	"time"

	"dcabacktest/internal/feargreed"
	"dcabacktest/internal/service"

	"github.com/gin-gonic/gin"
)

type SentimentRequest struct {
	Symbol       string `json:"symbol"`
	Seed         int64  `json:"seed"`
	DisableNoise bool   `json:"disableNoise"`
}

type SentimentPoint struct {
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
	Sentiment string  `json:"sentiment"`
}

type SentimentResponse struct {
	Symbol string           `json:"symbol"`
	Points []SentimentPoint `json:"points"`
}

func (m ApiHandler) sentiment(c *gin.Context) {
	var requestBody SentimentRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}
	if requestBody.Symbol == "" {
		returnErrorJsonCode(fmt.Errorf("symbol is required"), c, 400)
		return
	}

	seriesBySymbol, err := service.LoadSeriesFromDir(m.DataDir, []string{requestBody.Symbol})
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	series, ok := seriesBySymbol[requestBody.Symbol]
	if !ok {
		returnErrorJsonCode(fmt.Errorf("no price data for %s", requestBody.Symbol), c, 404)
		return
	}

	calc := feargreed.NewCalculator(requestBody.Seed)
	if requestBody.DisableNoise {
		calc.NoiseSigma = 0
	}

	idx, err := calc.Compute(series)
	if err != nil {
		if errors.Is(err, feargreed.ErrInsufficientHistory) {
			returnErrorJsonCode(err, c, 422)
			return
		}
		returnErrorJson(err, c)
		return
	}

	points := make([]SentimentPoint, len(idx.Points))
	for i, p := range idx.Points {
		points[i] = SentimentPoint{
			Date:      p.Date.Format(time.DateOnly),
			Value:     p.Value,
			Sentiment: feargreed.Label(p.Value),
		}
	}

	c.JSON(200, SentimentResponse{
		Symbol: idx.Symbol,
		Points: points,
	})
}

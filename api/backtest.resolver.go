package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dcabacktest/internal"
	"dcabacktest/internal/app"
	"dcabacktest/internal/calculator"
	"dcabacktest/internal/domain"
	"dcabacktest/internal/feargreed"
	"dcabacktest/internal/service"

	"github.com/gin-gonic/gin"
)

type BacktestRequest struct {
	Symbols          []string `json:"symbols"`
	BacktestStart    string   `json:"backtestStart"`
	BacktestEnd      string   `json:"backtestEnd"`
	WeeklyInvestment float64  `json:"weeklyInvestment"`
	InitialCapital   float64  `json:"initialCapital"`

	// Strategy is "dca" or "feargreed".
	Strategy string             `json:"strategy"`
	Weights  map[string]float64 `json:"weights"`

	Dampening          float64 `json:"dampening"`
	ModulateInvestment bool    `json:"modulateInvestment"`
	ModulationFactor   float64 `json:"modulationFactor"`
	Seed               int64   `json:"seed"`
	DisableNoise       bool    `json:"disableNoise"`
}

type BacktestResponse struct {
	Snapshots []domain.PortfolioSnapshot     `json:"snapshots"`
	Metrics   *calculator.PerformanceMetrics `json:"metrics"`
}

func (m ApiHandler) backtest(c *gin.Context) {
	var requestBody BacktestRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	start, err := time.Parse(time.DateOnly, requestBody.BacktestStart)
	if err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}
	end, err := time.Parse(time.DateOnly, requestBody.BacktestEnd)
	if err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}
	if end.Before(start) {
		returnErrorJsonCode(fmt.Errorf("end date cannot be before start date"), c, 400)
		return
	}

	seriesBySymbol, err := service.LoadSeriesFromDir(m.DataDir, requestBody.Symbols)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	var policy internal.AllocationPolicy = DCAPolicyFromRequest(requestBody)
	var indexes map[string]*feargreed.Index

	if strings.EqualFold(requestBody.Strategy, "feargreed") || requestBody.ModulateInvestment {
		calc := feargreed.NewCalculator(requestBody.Seed)
		if requestBody.DisableNoise {
			calc.NoiseSigma = 0
		}
		var errs map[string]error
		indexes, errs = calc.ComputeAll(seriesBySymbol)
		for symbol, err := range errs {
			if errors.Is(err, feargreed.ErrInsufficientHistory) {
				m.Log.Warnw("sentiment unavailable, falling back to baseline", "symbol", symbol)
				continue
			}
			returnErrorJson(err, c)
			return
		}
	}

	if strings.EqualFold(requestBody.Strategy, "feargreed") {
		fg := internal.NewFearGreedPolicy(requestBody.Weights, indexes)
		if requestBody.Dampening > 0 {
			fg.Dampening = requestBody.Dampening
		}
		policy = fg
	}

	handler := app.BacktestHandler{
		Prices: service.NewPriceService(seriesBySymbol),
		Log:    m.Log,
	}
	result, err := handler.Run(app.BacktestInput{
		Symbols:            requestBody.Symbols,
		Start:              start,
		End:                end,
		WeeklyInvestment:   requestBody.WeeklyInvestment,
		InitialCapital:     requestBody.InitialCapital,
		Policy:             policy,
		ModulateInvestment: requestBody.ModulateInvestment,
		ModulationFactor:   requestBody.ModulationFactor,
		Indexes:            indexes,
	})
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	metrics, err := calculator.CalculateMetrics(calculator.MetricsInput{
		History:              result.History,
		WeeklyInvestment:     requestBody.WeeklyInvestment,
		InitialCapital:       requestBody.InitialCapital,
		SumActualInvestments: requestBody.ModulateInvestment,
	})
	if err != nil && !errors.Is(err, calculator.ErrNoHistory) {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, BacktestResponse{
		Snapshots: result.History,
		Metrics:   metrics,
	})
}

func DCAPolicyFromRequest(requestBody BacktestRequest) internal.DCAPolicy {
	return internal.DCAPolicy{Weights: requestBody.Weights}
}

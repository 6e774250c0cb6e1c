package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/refresh"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	errUnableToFetchOffers     = errors.New("unable to fetch offers")
	errUnableToFetchRates      = errors.New("unable to fetch rates")
	errUnableToFetchCurrencies = errors.New("unable to fetch currencies")
	errUnableToFetchCountries  = errors.New("unable to fetch countries")
	errUnableToRefresh         = errors.New("unable to refresh")

	errInvalidSide     = errors.New("invalid side (must be buy or sell)")
	errInvalidCurrency = errors.New("invalid currency (must be 3 letters)")
	errInvalidCountry  = errors.New("invalid country (must be 2 letters)")
	errInvalidPage     = errors.New("invalid page")
	errInvalidPageSize = errors.New("invalid page_size")
	errInvalidLimit    = errors.New("invalid limit")

	errRefreshDisabled   = errors.New("refresh trigger not enabled")
	errBestRatesDisabled = errors.New("materialized rates not enabled")
)

func (s *Server) Offers(w http.ResponseWriter, r *http.Request) {
	query, err := parseOfferQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	page, pageSize, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	offers, err := s.engine.FetchOffers(r.Context(), *query)
	if err != nil {
		s.logger.Debug(
			"unable to fetch offers",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchOffers)

		return
	}

	resp := &OffersResponse{
		Count:    len(offers),
		Page:     page,
		PageSize: pageSize,
		Offers:   engine.Page(offers, page, pageSize),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Prices(w http.ResponseWriter, r *http.Request) {
	query, err := parseOfferQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	offers, err := s.engine.FetchOffers(r.Context(), *query)
	if err != nil {
		s.logger.Debug(
			"unable to fetch offers",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchOffers)

		return
	}

	prices := make([]decimal.Decimal, 0, len(offers))
	for _, offer := range offers {
		prices = append(prices, offer.EffectivePrice())
	}

	resp := &PricesResponse{
		Count:  len(prices),
		Prices: prices,
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) BestOffers(w http.ResponseWriter, r *http.Request) {
	query, err := parseOfferQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	offers, err := s.engine.FetchBest(r.Context(), *query, limit)
	if err != nil {
		s.logger.Debug(
			"unable to fetch best offers",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchOffers)

		return
	}

	writeJSON(w, http.StatusOK, &BestOffersResponse{Results: offers})
}

func (s *Server) BestRates(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errBestRatesDisabled)

		return
	}

	query, err := parseOfferQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	rates, err := s.store.BestRates(r.Context(), query.Fiat, query.Side, query.Country)
	if err != nil {
		s.logger.Debug(
			"unable to fetch best rates",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchRates)

		return
	}

	writeJSON(w, http.StatusOK, &BestRatesResponse{Results: rates})
}

func (s *Server) CrossRate(w http.ResponseWriter, r *http.Request) {
	from, err := parseCurrencySymbol(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	to, err := parseCurrencySymbol(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	countryFrom, err := parseCountry(r.URL.Query().Get("country_from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	countryTo, err := parseCountry(r.URL.Query().Get("country_to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	rate, err := s.engine.CrossRate(r.Context(), from, to, countryFrom, countryTo)
	if err != nil {
		var unavailable *engine.UnavailableError

		if errors.As(err, &unavailable) {
			resp := &ErrorResponse{
				Error:   unavailable.Error(),
				Missing: unavailable.Missing,
			}

			writeJSON(w, http.StatusNotFound, resp)

			return
		}

		s.logger.Debug(
			"unable to compute cross rate",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchRates)

		return
	}

	writeJSON(w, http.StatusOK, rate)
}

func (s *Server) Currencies(w http.ResponseWriter, r *http.Request) {
	items, err := s.rules.ActiveCurrencies(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch currencies",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchCurrencies)

		return
	}

	writeJSON(w, http.StatusOK, &CurrenciesResponse{Results: items})
}

func (s *Server) Countries(w http.ResponseWriter, r *http.Request) {
	var (
		items []types.CountryInfo
		err   error
	)

	fiatParam := strings.TrimSpace(r.URL.Query().Get("fiat"))

	if fiatParam != "" {
		fiat, parseErr := parseCurrencySymbol(fiatParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr)

			return
		}

		items, err = s.rules.CountriesFor(r.Context(), fiat)
	} else {
		items, err = s.rules.AllCountries(r.Context())
	}

	if err != nil {
		s.logger.Debug(
			"unable to fetch countries",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchCountries)

		return
	}

	writeJSON(w, http.StatusOK, &CountriesResponse{Results: items})
}

func (s *Server) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, errRefreshDisabled)

		return
	}

	force := strings.EqualFold(r.URL.Query().Get("force"), "true")

	result, err := s.refresher.Refresh(r.Context(), force)
	if err != nil {
		if errors.Is(err, refresh.ErrRefreshTooSoon) {
			writeError(w, http.StatusTooManyRequests, err)

			return
		}

		s.logger.Debug(
			"unable to run refresh",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToRefresh)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseOfferQuery parses the shared fiat / side / country / platform
// query parameters
func parseOfferQuery(r *http.Request) (*engine.OfferQuery, error) {
	fiat, err := parseCurrencySymbol(r.URL.Query().Get("fiat"))
	if err != nil {
		return nil, err
	}

	side, err := parseSide(r.URL.Query().Get("side"))
	if err != nil {
		return nil, err
	}

	country, err := parseCountry(r.URL.Query().Get("country"))
	if err != nil {
		return nil, err
	}

	return &engine.OfferQuery{
		Fiat:     fiat,
		Side:     side,
		Country:  country,
		Platform: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("platform"))),
	}, nil
}

func parseSide(v string) (types.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "BUY":
		return types.SideBUY, nil
	case "SELL":
		return types.SideSELL, nil
	default:
		return "", errInvalidSide
	}
}

func parseCurrencySymbol(v string) (types.Currency, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if len(s) != 3 {
		return "", errInvalidCurrency
	}

	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errInvalidCurrency
		}
	}

	return types.Currency(s), nil
}

// parseCountry parses an optional ISO-3166 alpha-2 country code.
// Empty means all countries
func parseCountry(v string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if s == "" {
		return "", nil
	}

	if len(s) != 2 {
		return "", errInvalidCountry
	}

	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errInvalidCountry
		}
	}

	return s, nil
}

func parsePage(r *http.Request) (int, int, error) {
	page := defaultPage

	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, errInvalidPage
		}

		page = n
	}

	pageSize := defaultPageSize

	if v := strings.TrimSpace(r.URL.Query().Get("page_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, errInvalidPageSize
		}

		pageSize = n
	}

	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize, nil
}

func parseLimit(v string) (int, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, nil // engine default
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}

	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}

package sandbox

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/posrental/canteen_sdk_go/pkg/canteen"
	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
)

// registerCollection mounts the five CRUD routes of one collection.
func registerCollection[T any, P dualstore.Patch[T]](r *mux.Router, name string, client *dualstore.Client[T, int64], filter func(url.Values) (dualstore.Filter[T], error)) {
	base := "/" + name
	item := base + "/{id:[0-9]+}"

	r.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		var f dualstore.Filter[T]
		if filter != nil {
			var err error
			if f, err = filter(r.URL.Query()); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		items, err := client.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Data: items})
	}).Methods(http.MethodGet)

	r.HandleFunc(item, func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		rec, err := client.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Data: rec})
	}).Methods(http.MethodGet)

	r.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		var data T
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		rec, err := client.Create(r.Context(), data)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{Data: rec})
	}).Methods(http.MethodPost)

	r.HandleFunc(item, func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var patch P
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		rec, err := client.Update(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Data: rec})
	}).Methods(http.MethodPut)

	r.HandleFunc(item, func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := client.Delete(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
}

// allOf ANDs filters; nil when there are none.
func allOf[T any](filters []dualstore.Filter[T]) dualstore.Filter[T] {
	if len(filters) == 0 {
		return nil
	}
	query := url.Values{}
	for _, f := range filters {
		for k, vs := range f.Query() {
			query[k] = append(query[k], vs...)
		}
	}
	return dualstore.Where(query, func(rec T) bool {
		for _, f := range filters {
			if !f.Match(rec) {
				return false
			}
		}
		return true
	})
}

func parseBool(q url.Values, key string) (value, present bool, err error) {
	raw := q.Get(key)
	if raw == "" {
		return false, false, nil
	}
	value, err = strconv.ParseBool(raw)
	return value, err == nil, err
}

func stallFilter(q url.Values) (dualstore.Filter[canteen.Stall], error) {
	var filters []dualstore.Filter[canteen.Stall]
	occupied, ok, err := parseBool(q, "is_occupied")
	if err != nil {
		return nil, err
	}
	if ok {
		filters = append(filters, canteen.OccupiedStalls(occupied))
	}
	return allOf(filters), nil
}

func contractFilter(q url.Values) (dualstore.Filter[canteen.Contract], error) {
	var filters []dualstore.Filter[canteen.Contract]
	active, ok, err := parseBool(q, "is_active")
	if err != nil {
		return nil, err
	}
	if ok && active {
		filters = append(filters, canteen.ActiveContracts())
	}
	if raw := q.Get("stall_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		filters = append(filters, canteen.ContractsForStall(id))
	}
	return allOf(filters), nil
}

func paymentFilter(q url.Values) (dualstore.Filter[canteen.Payment], error) {
	var filters []dualstore.Filter[canteen.Payment]
	if q.Get("month") != "" || q.Get("year") != "" {
		month, err := canteen.ParseMonth(q.Get("month"))
		if err != nil {
			return nil, err
		}
		year, err := strconv.Atoi(q.Get("year"))
		if err != nil {
			return nil, err
		}
		filters = append(filters, canteen.PaymentsForPeriod(canteen.Period{Month: month, Year: year}))
	}
	paid, ok, err := parseBool(q, "is_paid")
	if err != nil {
		return nil, err
	}
	if ok && !paid {
		filters = append(filters, canteen.UnpaidPayments())
	}
	return allOf(filters), nil
}

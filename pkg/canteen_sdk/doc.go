// Package canteen_sdk bootstraps a canteen.Service from environment
// variables. CANTEEN_RUNTIME_MODE selects between the HTTP API with cache
// fallback ("http"), a cache-only client ("offline"), or the former when
// CANTEEN_API_URL is set and the latter otherwise ("auto"). The cache backend
// is chosen by CANTEEN_CACHE_DRIVER and may be pre-populated from a seed file
// named by CANTEEN_CACHE_SEED.
package canteen_sdk

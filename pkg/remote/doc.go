// Package remote is the client for the authoritative canteen API. Each
// collection maps to a REST resource:
//
//	GET    /<collection>
//	GET    /<collection>/{id}
//	POST   /<collection>
//	PUT    /<collection>/{id}
//	DELETE /<collection>/{id}
//
// plus collection-specific item actions (PATCH /<collection>/{id}/<action>)
// and collection actions (POST /<collection>/<action>). Responses may be bare
// JSON or wrapped in a {"data": ...} envelope.
package remote

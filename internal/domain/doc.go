// Package domain models safety incidents ("occurrences") reported on a map and the
// pure functions the radar runtime builds on.
//
// # Payloads
//
// Incidents arrive from three places: the remote poll endpoint, the incremental
// stream, and this client's own creation flow. Field names vary between them:
//
//	category | type              -> Category (lower-cased, looked up in the CategoryTable)
//	occurred_at | created_at      -> OccurredAt (RFC3339 or epoch milliseconds)
//	lat, lng                      -> Lat, Lng (numbers or numeric strings)
//	radius_m                      -> RadiusMeters (defaults to 300 m)
//
// Every payload goes through [Normalizer.Normalize], which produces the canonical
// [Incident] or rejects the payload when its coordinates are not finite numbers
// or its timestamp cannot be parsed.
// Normalization is idempotent: feeding the JSON form of an Incident back in yields
// the same Incident.
//
// # Categories
//
// The default table mirrors the categories users can report:
//
//	assalto        Assalto        high
//	briga          Briga          medium
//	blitz          Blitz          low
//	policia        Polícia        low
//	confronto      Confronto      high
//	foragidos      Foragidos      medium
//	desaparecidos  Desaparecidos  low
//	tiros          Tiros          high
//
// Severity resolution order is: explicit payload severity, the category default,
// then "medium".
//
// # Active window
//
// An incident is active while now - OccurredAt <= 60 minutes. Inactive incidents
// are dropped silently by the store; they are never reported as errors.
//
// # Geometry
//
// Distances use the haversine formula on a sphere of radius 6,371,000 m.
// [ClampToRadius] uses an equirectangular approximation that is only meant for
// spans of a couple of kilometres (picking a report location near the observer).
package domain

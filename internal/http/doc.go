// Package http exposes the room scheduling engine over HTTP using Echo.
//
// The router serves the following endpoints:
//   - POST /scheduling/messages: delivers an iTIP message to a room. Body:
//     {"method","sender","recipient","calendar"}. Response:
//     {"handled","result_code","partstat","calendar"} where calendar is the
//     payload as rewritten by the engine.
//   - PUT /calendars/{owner}/{calendar}/{object}: organizer object write hook.
//     Accepts and returns text/calendar.
//   - GET /calendars/{owner}/{calendar}/{object}: reads an organizer object,
//     applying any pending room decisions first.
//   - GET /rooms/{id}/bookings?from=&to=: lists the bookings of a room. Bounds
//     are optional RFC 3339 timestamps.
//   - POST /rooms/{id}/bookings/{uid}/respond: body {"action":"accept"|"decline"}.
//
// Room endpoints identify the caller from the X-Remote-User header set by the
// fronting proxy.
package http

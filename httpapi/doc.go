// Package httpapi exposes senseai over HTTP with gin.
//
// Routes:
//
//	GET    /                           health
//	POST   /upload                     multipart "file" plus optional "device_id"
//	POST   /add_url                    {"url", "device_id"}
//	GET    /documents?device_id=       list, optionally filtered by owner
//	DELETE /documents/:id?device_id=   delete an item and its session
//	POST   /documents/:id/reprocess    re-run ingestion from the retained source
//	POST   /create_session/:id         owner from {"device_id"} or ?device_id=
//	POST   /chat                       {"messages", "session_ids", "history", "device_id"}
//
// Failures are returned as {"detail": "..."} with a status code derived from
// the error kind.
package httpapi

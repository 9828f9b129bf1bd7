// Package activity records who did what and serves the activity log.
//
// Handlers record an Entry after a state change succeeds:
//
//	recorder.RecordRequest(r, caller.UserID(), activity.ActionFileUpload, map[string]interface{}{
//		"fileName": name,
//	})
//
// Recording never fails the request. A failed insert is logged and counted
// in warden_activity_write_failures_total.
//
// GET /api/activity lists entries newest first. Non-admin callers only see
// their own entries regardless of the userId parameter. The remaining
// filters (search, actionType, timeRange, dateFrom, dateTo) narrow the
// result further; explicit dates win over a named time range.
package activity

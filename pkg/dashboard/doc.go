// Package dashboard serves GET /api/dashboard/stats, the four counters shown
// on the landing page. The counts run concurrently.
package dashboard

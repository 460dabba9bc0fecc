package engine

import (
	"fmt"
	"strings"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// composeBatchMessage builds the title and body stored on a notification
// record. The stored text is channel-neutral; the email channel wraps it in
// its own HTML rendering at dispatch time.
func composeBatchMessage(batch *types.Batch, notifType types.NotificationType, remaining int) (title, message string) {
	qty := fmt.Sprintf("%g %s", batch.Quantity, batch.Unit)

	switch notifType {
	case types.TypeExpired:
		title = fmt.Sprintf("Expired: %s", batch.ProductName)
		if remaining == 0 {
			message = fmt.Sprintf("%s (%s) expires today.", batch.ProductName, qty)
		} else {
			message = fmt.Sprintf("%s (%s) expired %s ago.", batch.ProductName, qty, days(-remaining))
		}
	case types.TypeExpiryCritical:
		title = fmt.Sprintf("Critical expiry: %s", batch.ProductName)
		message = fmt.Sprintf("%s (%s) expires in %s.", batch.ProductName, qty, days(remaining))
	default:
		title = fmt.Sprintf("Expiry warning: %s", batch.ProductName)
		message = fmt.Sprintf("%s (%s) expires in %s.", batch.ProductName, qty, days(remaining))
	}
	return title, message
}

// batchLine renders one batch as a line of the aggregated chat push.
func batchLine(batch *types.Batch, notifType types.NotificationType, remaining int) string {
	icon := "⚠️"
	switch notifType {
	case types.TypeExpired:
		icon = "🔴"
	case types.TypeExpiryCritical:
		icon = "🟠"
	}

	when := "expires today"
	switch {
	case remaining > 0:
		when = fmt.Sprintf("expires in %s", days(remaining))
	case remaining < 0:
		when = fmt.Sprintf("expired %s ago", days(-remaining))
	}

	return fmt.Sprintf("%s %s (%g %s), %s", icon, batch.ProductName, batch.Quantity, batch.Unit, when)
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

package enums

import "fmt"

// NotificationType labels stock and order lifecycle notifications.
type NotificationType string

const (
	NotificationTypeLowStock       NotificationType = "LOW_STOCK"
	NotificationTypeOutOfStock     NotificationType = "OUT_OF_STOCK"
	NotificationTypeStockRestored  NotificationType = "STOCK_RESTORED"
	NotificationTypeOrderPlaced    NotificationType = "ORDER_PLACED"
	NotificationTypeOrderCancelled NotificationType = "ORDER_CANCELLED"
	NotificationTypeOrderDelivered NotificationType = "ORDER_DELIVERED"
	NotificationTypeRefundIssued   NotificationType = "REFUND_ISSUED"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeLowStock,
	NotificationTypeOutOfStock,
	NotificationTypeStockRestored,
	NotificationTypeOrderPlaced,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderDelivered,
	NotificationTypeRefundIssued,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

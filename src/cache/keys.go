package cache

import "fmt"

// Cache key layout, one key per entity plus one per derived list. Every
// mutation deletes the keys whose underlying query it could have changed.

func TicketTypeKey(id uint) string {
	return fmt.Sprintf("ticketType:%d", id)
}

func TicketKey(id uint) string {
	return fmt.Sprintf("ticket:%d", id)
}

func EventTicketTypesKey(eventID uint) string {
	return fmt.Sprintf("event:%d:ticketTypes", eventID)
}

func EventTicketsKey(eventID uint) string {
	return fmt.Sprintf("event:%d:tickets", eventID)
}

func CustomerTicketsKey(customerID uint) string {
	return fmt.Sprintf("customer:%d:tickets", customerID)
}

package store

import (
	"fmt"
	"strconv"
)

// Key patterns for the Redis layout. Every secondary index listed here is
// maintained by exactly one write path in redis.go; see the interface docs
// in store.go for the per-write obligations.
const (
	keyCallsByDate   = "calls:by_date"    // zset: score = createdAt ms, member = call id
	keyCallsActive   = "calls:active"     // set of live call ids
	keyShiftsList    = "shifts:list"      // set of all shift ids
	keyTicketsList   = "tickets:by_start" // zset: score = call start ms, member = call record id
	keyContactsList  = "contacts:list"    // set of normalized phone numbers
	keyOperatorsList = "operators:list"   // set of operator ids
	keyEventsSeq     = "events:seq"       // INCR counter for envelope sequence ids
	keyEventsLog     = "events:log"       // zset: score = sequence id, member = envelope JSON
)

func keyCall(id string) string              { return "call:" + id }
func keyCallByProvider(pid string) string   { return "call:cid:" + pid }
func keyCallsByPhone(phone string) string   { return "calls:phone:" + phone }
func keyCallsByRegion(region string) string { return "calls:region:" + region }
func keyCallsByOperator(op string) string   { return "calls:operator:" + op }

func keyShift(id string) string            { return "shift:" + id }
func keyShiftsByDate(date string) string   { return "shifts:date:" + date }
func keyShiftsByOperator(op string) string { return "shifts:operator:" + op }

func keyCoverage(date string, hour int) string {
	return "shifts:coverage:" + date + ":" + strconv.Itoa(hour)
}

func keyTicket(callRecordID string) string { return "ticket:" + callRecordID }
func keyTicketsAssigned(operatorID string) string {
	return "tickets:assigned:" + operatorID
}

func keyCursor(date string, hour int) string {
	return fmt.Sprintf("tickets:rr:%s:%d", date, hour)
}

func keyContact(phone string) string { return "contact:" + phone }
func keyOperator(id string) string   { return "operator:" + id }

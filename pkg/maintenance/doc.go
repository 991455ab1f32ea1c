// Package maintenance defines the vehicle maintenance logging flows.
//
// Both flows share basic info, services, optional photos, notes and a final
// review. The DIY flow records parts and their cost; the shop flow records
// where the service was done and what it cost. ToLog turns a completed run
// into a typed Log.
package maintenance

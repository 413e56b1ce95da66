// Package cards maps deck values 0..51 to playing cards for display.
// Values are ordered by suit (clubs, diamonds, hearts, spades) and, inside
// a suit, by rank from ace to king.
package cards

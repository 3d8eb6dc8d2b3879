// Package display formats four state values for people: hex, binary, octal
// and decimal renderings with x and z digits and a character budget.
package display

// Package led defines the desired LED state model for HomeSeer status LEDs.
//
// A HomeSeer HS-WD200+ or HS-WX300 dimmer carries seven status LEDs stacked
// vertically. Each LED has a colour and a blink flag. A Table holds the
// desired state of all seven, index 0 being the bottom LED.
//
// The numeric values of Color and Blink are the values written to the
// device's configuration parameters and must not be renumbered.
//
// Tables are values. Every update returns a new Table, so a Table received
// from a channel or a callback can be kept and read without locking.
package led

// Package ime routes key events from an input method host to composers.
//
// A Server receives every key press of the process together with the
// Controller of the text field it belongs to. The composer first sees the
// event as a command; if it declines, the Server decides which text the
// key stands for. Printable keys are read from the US-ANSI scan code
// tables in package keymap so composers see the same characters whatever
// keyboard layout the system has selected. Keys held with Command,
// Control or (by default) Option go back to the client, and the host is
// told to commit any pending composition first.
//
// Caps Lock is not routed. The host asks the Server whether a press was
// observed at the HID level (see package capslock) and toggles the input
// mode instead, while the lock state itself is forced back to its
// configured default.
//
// On Linux the package hosts engines for IBus over D-Bus: Factory creates
// one Engine per input context, Engine translates IBus key events into
// KeyEvents, and LookupPanel renders candidate lists through the IBus
// lookup table signals.
package ime

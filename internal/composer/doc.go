// Package composer holds the composers the IBus engine ships with.
//
// None of them implement a script. Roman commits what it is given,
// Dictionary expands typed abbreviations from a word list through a
// candidate list, and Switcher moves between composers when Caps Lock is
// pressed.
package composer

package sendero

// Version is the current version of the sendero library.
const Version = "0.3.0"

package domain

// RoleAdmin is the only role the console issues tokens for.
const RoleAdmin = "admin"

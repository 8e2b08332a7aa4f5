package orders

type Status string

// Placement is the only transition this service performs.
const StatusPlaced Status = "PLACED"

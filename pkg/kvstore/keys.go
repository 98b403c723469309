package kvstore

// Logical key names. These match the upstream integration's historical
// names so an existing store keeps working across deployments.
const (
	KeyClientID       = "gardenaClientId"
	KeyClientSecret   = "gardenaClientSecret"
	KeySmartHost      = "gardenaSmartHost"
	KeyAuthHost       = "gardenaAuthHost"
	KeyAuthToken      = "gardenaAuthToken"
	KeyRefreshToken   = "gardenaRefreshToken"
	KeyTokenExpiresAt = "gardenaAuthTokenExpiresAt"
	KeyUserID         = "gardenaUserId"
	KeyLocation       = "gardenaLocation"
	KeyPumpID         = "gardenaPumpId"
	KeyValveIDs       = "gardenaValveIds"
	KeyDeviceStates   = "gardenaDeviceStates"
	KeyHmacSecret     = "gardenaHmacSecret"
	KeyHmacValidity   = "hmacSecretValidity"
	KeyRegistered     = "webhookRegistered"
	KeyPumpsAndValves = "gardenaPumpsAndValves"
)

package mqtt

// Root of every topic Gatehouse publishes under.
const TopicRoot = "gatehouse"

// Topics builds topic names.
//
//	mqtt.Topics{}.AuthEvent("login_failed") // gatehouse/events/auth/login_failed
type Topics struct{}

// SystemStatus carries the retained online/offline status and the will.
func (Topics) SystemStatus() string { return TopicRoot + "/system/status" }

// AuthEvent is the topic for one audit action.
func (Topics) AuthEvent(action string) string { return TopicRoot + "/events/auth/" + action }

// Package discovery derives Home Assistant MQTT discovery payloads from
// devices.
//
// A device with a Level attribute is announced as a dimmable light, one with
// an On_Off attribute as a switch. Anything else has no payload and is left
// out of the broadcast. Payloads point back at the bridge's own status and
// set topics, so Home Assistant drives devices through the same path as any
// other MQTT client.
package discovery

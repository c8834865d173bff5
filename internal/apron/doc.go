// Package apron talks to the hub's radios through the aprontest tool.
//
// Aprontest builds each operation's argument list, runs it through a
// process.Runner (bounded, serialized) and parses the output with package
// parser:
//
//	List            aprontest -l
//	Describe        aprontest -l -m <id>
//	Set             aprontest -u -m <id> -t <attribute> -v <value>
//	StartDiscovery  aprontest -a -r <radio>
//	Raw             aprontest <args...>
//
// Fake provides the same Controller interface without the tool, for running
// the bridge off-hub.
package apron

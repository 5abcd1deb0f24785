// Package remoteagent connects to a remote A2A agent and runs chat
// sessions against it.
//
// # Basic Usage
//
// Connect from a URL (the agent card is resolved automatically):
//
//	client, _ := remoteagent.NewClient(ctx, remoteagent.Config{
//	    Name: "researcher",
//	    URL:  "http://localhost:9000",
//	})
//
// # Sessions
//
// A session streams one message at a time and reports every change to the
// rendered conversation as a delta:
//
//	session := remoteagent.NewSession(client, remoteagent.SessionConfig{
//	    Translator: translator.New(translator.Config{}),
//	})
//	res, err := session.Send(ctx, msg, func(d agui.Delta) error {
//	    return sse.WriteDelta(d)
//	})
//
// Sending again while a stream is active cancels the earlier stream.
package remoteagent

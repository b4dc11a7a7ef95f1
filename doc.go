// Package webmail is the mailbox item lifecycle engine of a webmail backend.
//
// It manages three kinds of items per owner: sent emails, received emails
// and drafts. Each item is either active or in the trash and carries a
// starred flag that is independent of its folder. Drafts are promoted to
// sent emails by Send, which moves the draft to the trash afterwards.
// Inbound messages are routed to the owning account by exact address match.
//
// # Basic Usage
//
//	svc, err := webmail.NewService(
//	    webmail.WithStore(memory.New()),
//	    webmail.WithTransport(postal.New(apiURL, apiKey)),
//	    webmail.WithAccountResolver(resolver.NewStatic(map[string]string{
//	        "alice@example.com": "alice",
//	    })),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	mb := svc.Client("alice")
//	res, err := mb.Send(ctx, webmail.SendRequest{
//	    From:     "alice@example.com",
//	    To:       []string{"bob@example.com, carol@example.com"},
//	    Subject:  "Hi",
//	    HTMLBody: "<p>Hello</p>",
//	    DraftID:  draftID,
//	})
//
// # Lifecycle
//
//   - Trash, Restore: move an item between its folder and the trash
//   - PermanentlyDelete: remove an item from any state
//   - SetStarred: star or unstar regardless of folder
//   - SaveDraft: create or overwrite a draft; overwriting un-trashes it
//   - TrashItems, StarredItems: merged views over all kinds, newest first
//
// Ownership is checked inside every store operation. An item that belongs
// to another owner is reported as ErrNotFound, exactly like a missing one.
//
// # Storage Backends
//
//   - In-memory (store/memory) - for testing
//   - SQLite (store/sqlite) - modernc.org/sqlite
//   - PostgreSQL (store/postgres) - accepts *sqlx.DB or *sql.DB
//   - MongoDB (store/mongo) - accepts *mongo.Client
//
// # Events
//
// Events use github.com/rbaliyan/event/v3. Without WithRedisClient or
// WithEventTransport they are dropped by a noop transport.
//
//	svc.Events().MessageReceived.Subscribe(ctx, handler)
//
// Available events: MessageSent, MessageReceived, ItemTrashed,
// ItemRestored, ItemDeleted.
package webmail

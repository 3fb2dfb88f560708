// Package mailer implements carauth.EmailSender.
//
// [Renderer] turns an engine message into a subject, an HTML body and a
// plain-text body from the embedded templates. [SMTPSender] delivers
// through a pooled SMTP connection; [LogSender] only logs the link, for
// development.
package mailer

package services

import "fmt"

// emailLayoutHTML is the branded wrapper around every plain-text message.
// Args: title, heading, body paragraphs, year, organization.
const emailLayoutHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f8f9fa; margin: 0; padding: 20px; }
  .container { max-width: 500px; margin: auto; background: #ffffff; border: 1px solid #e9ecef; border-radius: 8px; overflow: hidden; }
  .header { background-color: #2f6fde; color: white; padding: 20px; text-align: center; }
  .header h1 { margin: 0; font-size: 22px; }
  .content { padding: 30px; }
  .footer { background-color: #f8f9fa; padding: 20px; text-align: center; font-size: 12px; color: #6c757d; }
</style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>%s</h1></div>
    <div class="content">%s</div>
    <div class="footer">© %d %s. All rights reserved.</div>
  </div>
</body>
</html>`

func confirmationEmail(org, username string) (subject, body string) {
	subject = org + " - Welcome aboard"
	body = fmt.Sprintf(
		"Hi %s,\n\nYour %s account has been created. You can sign in with your email address or username.\n\nIf you did not create this account, please contact support.",
		username, org,
	)
	return subject, body
}

func passwordResetEmail(org, appURL, token string, ttlMinutes int) (subject, body string) {
	subject = org + " - Reset your password"
	body = fmt.Sprintf(
		"We received a request to reset your password.\n\nUse this code on the reset page at %s/reset-password:\n%s\n\nThe code expires in %d minutes and can be used once. If you did not ask for a reset, you can ignore this email.",
		appURL, token, ttlMinutes,
	)
	return subject, body
}

func passwordChangedEmail(org string) (subject, body string) {
	subject = org + " - Your password was changed"
	body = "The password on your account was just changed and every signed-in session was ended.\n\nIf this was not you, reset your password immediately."
	return subject, body
}

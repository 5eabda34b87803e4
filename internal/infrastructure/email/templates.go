package email

import (
	"fmt"
	"html"
)

// DiscountCodeHTML renders the discount delivery email body.
func DiscountCodeHTML(code, shopName string) string {
	safeName := html.EscapeString(shopName)
	safeCode := html.EscapeString(code)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, sans-serif; color: #1a1a1a; max-width: 480px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Thanks for visiting %s</h2>
  <p>Here is your discount code:</p>
  <div style="background: #f4f4f5; border-radius: 8px; padding: 16px; text-align: center; font-size: 24px; letter-spacing: 2px; font-weight: 700;">%s</div>
  <p style="color: #71717a; font-size: 13px; margin-top: 16px;">Apply it at checkout. This code was issued for your session only.</p>
</body>
</html>`, safeName, safeCode)
}

// WelcomeHTML renders the post-capture welcome email body.
func WelcomeHTML(shopName string) string {
	safeName := html.EscapeString(shopName)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, sans-serif; color: #1a1a1a; max-width: 480px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Welcome to %s</h2>
  <p>You're on the list. We'll keep you posted on new arrivals and offers.</p>
</body>
</html>`, safeName)
}

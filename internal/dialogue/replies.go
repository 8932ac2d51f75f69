package dialogue

import (
	"fmt"
	"strings"

	"github.com/lukasbauer/sahayak/internal/catalog"
)

// Fixed assistant replies. All user-facing text is Hindi.
const (
	ReplyGreeting = "नमस्ते! मैं आपका सरकारी योजना सहायक हूँ। बताइए मैं आपकी कैसे मदद कर सकता हूँ?"

	// ReplyNotUnderstood answers null input and is the last-resort fallback.
	ReplyNotUnderstood = "क्षमा करें, मैं समझ नहीं पाया। कृपया फिर से बोलें।"

	ReplyAskAgeIncome = "ज़रूर! आपके लिए सही योजनाएं ढूँढने के लिए कृपया अपनी आयु और वार्षिक आय बताएं।"

	ReplyOnlySchemes = "क्षमा करें, मैं केवल सरकारी योजनाओं में आपकी सहायता कर सकता हूँ।"

	ReplyCollectReprompt = "क्षमा करें, मैं केवल सरकारी योजनाओं में आपकी सहायता कर सकता हूँ। कृपया अपनी आयु या आय बताएं।"

	ReplyNeedBoth = "पात्रता जानने के लिए मुझे आपकी आयु और आय दोनों की आवश्यकता है।"

	ReplyImplausibleAge = "आपके द्वारा बताई गई आयु सही नहीं लगती। कृपया अपनी सही आयु बताएं।"

	ReplyNoSchemes = "क्षमा करें, आपकी जानकारी के आधार पर कोई योजना नहीं मिली।"

	ReplyNameFromList = "कृपया सूची में से किसी योजना का नाम बताएं।"

	ReplyDeflect = "क्षमा करें, मैं यह नहीं समझ पाया। मैं केवल ऊपर दी गई योजनाओं के बारे में जानकारी दे सकता हूँ।"

	ReplyChooseScheme = "कृपया सूची में से कोई एक योजना चुनें, या सभी योजनाओं के लाभ पूछें।"

	ReplyYesNo = "कृपया 'हाँ' या 'नहीं' में उत्तर दें। क्या आप इस योजना के लिए आवेदन करना चाहते हैं?"

	ReplyClosing = "कोई बात नहीं। सरकारी योजना सहायक का उपयोग करने के लिए धन्यवाद!"

	ReplyTechnicalError = "तकनीकी त्रुटि। कृपया पुनः प्रयास करें।"

	// ReplyContradiction is prefixed to a reply when a re-stated fact
	// differs from the stored one and contradiction notes are enabled.
	ReplyContradiction = "मैंने नोट किया कि आपकी जानकारी पहले अलग थी, मैं नई जानकारी के साथ आगे बढ़ रहा हूँ।"
)

func renderSchemeList(schemes []catalog.Scheme) string {
	var b strings.Builder
	b.WriteString("आप इन योजनाओं के लिए पात्र हैं:\n")
	for i, s := range schemes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Name)
	}
	b.WriteString("किसी योजना के बारे में जानने के लिए उसका नाम बताएं, या सभी योजनाओं के लाभ पूछें।")
	return b.String()
}

func renderAllBenefits(schemes []catalog.Scheme) string {
	parts := make([]string, 0, len(schemes)+1)
	for _, s := range schemes {
		parts = append(parts, fmt.Sprintf("**%s**: %s", s.Name, s.Description))
	}
	parts = append(parts, "आवेदन के लिए किसी योजना का नाम बताएं।")
	return strings.Join(parts, "\n\n")
}

func renderSchemeDetail(s catalog.Scheme) string {
	return fmt.Sprintf("**%s**\n%s\n\nक्या आप इस योजना के लिए आवेदन करना चाहते हैं? (हाँ/नहीं)", s.Name, s.Description)
}

func renderApplyLink(s catalog.Scheme) string {
	if s.Link == "" {
		return fmt.Sprintf("बहुत अच्छा! %s के लिए आवेदन करने हेतु कृपया अपने नज़दीकी जन सेवा केंद्र (CSC) पर आधार कार्ड के साथ संपर्क करें।", s.Name)
	}
	return fmt.Sprintf("बहुत अच्छा! आप यहाँ आवेदन कर सकते हैं: [%s](%s)\nआवेदन के लिए आपको आधार कार्ड की आवश्यकता होगी।", s.Name, s.Link)
}

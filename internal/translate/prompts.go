package translate

import "fmt"

const translatorSystemTemplate = "You are an expert linguist, specializing in translation from %s to %s."

const editorSystemTemplate = "You are an expert linguist, specializing in translation editing from %s to %s."

const initialTranslationTemplate = `This is a %s to %s translation. Provide the %s translation for the following text. Do not provide any explanations or text apart from the translation.

<SOURCE_TEXT>
%s
</SOURCE_TEXT>`

const reflectionTemplate = `Your task is to carefully read a source text and a translation from %s to %s, and then give constructive criticism and helpful suggestions to improve the translation. The final style and tone of the translation should match the style of %s colloquially spoken in %s.

The source text and initial translation, delimited by XML tags <SOURCE_TEXT></SOURCE_TEXT> and <TRANSLATION></TRANSLATION>, are as follows:

<SOURCE_TEXT>
%s
</SOURCE_TEXT>

<TRANSLATION>
%s
</TRANSLATION>

When writing suggestions, pay attention to whether there are ways to improve the translation's
(i) accuracy (by correcting errors of addition, mistranslation, omission, or untranslated text),
(ii) fluency (by applying %s grammar, spelling and punctuation rules, and ensuring there are no unnecessary repetitions),
(iii) style (by ensuring the translation reflects the style of the source text and takes into account any cultural context),
(iv) terminology (by ensuring terminology use is consistent and reflects the source text domain; and by only ensuring you use equivalent idioms in %s).

Write a list of specific, helpful and constructive suggestions for improving the translation.
Each suggestion should address one specific part of the translation.
Output only the suggestions and nothing else.`

const improvementTemplate = `Your task is to carefully read, then edit, a translation from %s to %s, taking into account a list of expert suggestions and constructive criticisms.

The source text, the initial translation, and the expert linguist suggestions are delimited by XML tags <SOURCE_TEXT></SOURCE_TEXT>, <TRANSLATION></TRANSLATION> and <EXPERT_SUGGESTIONS></EXPERT_SUGGESTIONS> as follows:

<SOURCE_TEXT>
%s
</SOURCE_TEXT>

<TRANSLATION>
%s
</TRANSLATION>

<EXPERT_SUGGESTIONS>
%s
</EXPERT_SUGGESTIONS>

Please take into account the expert suggestions when editing the translation. Edit the translation by ensuring:

(i) accuracy (by correcting errors of addition, mistranslation, omission, or untranslated text),
(ii) fluency (by applying %s grammar, spelling and punctuation rules and ensuring there are no unnecessary repetitions),
(iii) style (by ensuring the translation reflects the style of the source text),
(iv) terminology (inappropriate for context, inconsistent use), or
(v) other errors.

Output only the new translation and nothing else.`

func translatorSystem(opts Options) string {
	return fmt.Sprintf(translatorSystemTemplate, opts.SourceLang, opts.TargetLang)
}

func editorSystem(opts Options) string {
	return fmt.Sprintf(editorSystemTemplate, opts.SourceLang, opts.TargetLang)
}

func initialTranslationPrompt(opts Options, sourceText string) string {
	return fmt.Sprintf(initialTranslationTemplate,
		opts.SourceLang, opts.TargetLang, opts.TargetLang, sourceText)
}

func reflectionPrompt(opts Options, sourceText, translation string) string {
	return fmt.Sprintf(reflectionTemplate,
		opts.SourceLang, opts.TargetLang, opts.TargetLang, opts.Country,
		sourceText, translation,
		opts.TargetLang, opts.TargetLang)
}

func improvementPrompt(opts Options, sourceText, translation, suggestions string) string {
	return fmt.Sprintf(improvementTemplate,
		opts.SourceLang, opts.TargetLang,
		sourceText, translation, suggestions,
		opts.TargetLang)
}
